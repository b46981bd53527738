package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddTopics(t *testing.T) {
	assert.Equal(t, "dump_shim", addTopics("", "dump_shim"))
	assert.Equal(t, "run,dump_llvm,dump_shim", addTopics("run,dump_llvm", "dump_shim"))
}
