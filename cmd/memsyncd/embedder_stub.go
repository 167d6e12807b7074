//go:build !onnx

package main

import (
	"fmt"

	"github.com/preflect/memsync/config"
	"github.com/preflect/memsync/memory"
)

func newLocalEmbedder(config.Config) (memory.Embedder, error) {
	return nil, fmt.Errorf("local embedding requires a binary built with the onnx tag")
}
