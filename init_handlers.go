// Package main: Handler katmanı başlatma.
//
// Handler'lar "thin" dir: sadece HTTP parse + service call + response write.
package main

import (
	"github.com/akinalp/dmsync/handlers"
)

// Handlers, handler instance'larını tutan container struct.
type Handlers struct {
	Debug *handlers.DebugHandler
}

func initHandlers(s *Services) *Handlers {
	return &Handlers{
		Debug: handlers.NewDebugHandler(s.Messenger),
	}
}
