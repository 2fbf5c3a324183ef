package handler

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"
)

func ioNopCloser(body string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(body))
}

func ginParam(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}
