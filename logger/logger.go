// Package logger provides adapters for popular logger libraries to work with pintree's Logger interface.
//
// The adapters allow you to use your existing logger with pintree without writing boilerplate.
// Note that the standard library's slog.Logger already implements pintree.Logger directly.
//
// Example with zap:
//
//	import (
//	    "pintree"
//	    "pintree/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    idx, err := pintree.Open("orders.idx", pintree.WithLogger(logger.NewZap(zapLogger)))
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer idx.Close()
//	}
package logger
