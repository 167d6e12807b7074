//go:build onnx

package main

import (
	"github.com/preflect/memsync/config"
	"github.com/preflect/memsync/memory"
	"github.com/preflect/memsync/memory/embedder/onnx"
)

func newLocalEmbedder(cfg config.Config) (memory.Embedder, error) {
	return onnx.New(onnx.Config{
		ModelPath:     cfg.ONNXModelPath,
		TokenizerPath: cfg.ONNXTokenizer,
	})
}
