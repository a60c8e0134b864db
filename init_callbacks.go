// Package main: WebSocket Manager callback wire-up.
//
// ws paketi services'e bağımlı değildir (Dependency Inversion). Manager
// bağlantı olaylarını callback'lerle bildirir; burada Messenger'a bağlanır.
//
// Callback'ler Manager'ın bağlantı goroutine'inden senkron çağrılır.
// Resync REST çağrısı yaptığı için Messenger'ın arka plan işi olarak
// başlatılır; okuma döngüsü bloklanmaz ve Stop onu da bekler.
package main

import (
	"log"

	"github.com/akinalp/dmsync/services"
	"github.com/akinalp/dmsync/ws"
)

func registerConnectionCallbacks(manager *ws.Manager, messenger services.Messenger) {
	manager.OnEvent(messenger.HandleEvent)

	manager.OnConnect(func() {
		messenger.SetConnected(true)
	})

	manager.OnDisconnect(func(err error) {
		messenger.SetConnected(false)
		if err != nil {
			log.Printf("[ws] session %s dropped: %v", manager.SessionID(), err)
		}
	})

	manager.OnError(func(err error) {
		log.Printf("[ws] session %s error: %v", manager.SessionID(), err)
	})

	manager.OnReconnect(func() {
		if !messenger.ScheduleResync() {
			log.Printf("[ws] engine stopped, resync skipped")
		}
	})
}
