package dav

import (
	"bytes"
	"sync"
)

var responseBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 64*1024))
	},
}

func getResponseBuffer() *bytes.Buffer {
	return responseBufferPool.Get().(*bytes.Buffer)
}

func putResponseBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	buf.Reset()
	responseBufferPool.Put(buf)
}

const copyBufferSize = 256 * 1024

var copyBufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, copyBufferSize)
		return &b
	},
}

func getCopyBuffer() *[]byte {
	return copyBufferPool.Get().(*[]byte)
}

func putCopyBuffer(b *[]byte) {
	if b == nil {
		return
	}
	copyBufferPool.Put(b)
}
