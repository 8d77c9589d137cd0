package cadente_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cadente/cadente"
)

func ExampleServer() {
	s := &cadente.Server{
		Handler: func(ctx *cadente.Ctx) {
			ctx.Success("text/plain", []byte(fmt.Sprintf("Hello from %s", ctx.Request.Path())))
		},
	}
	if err := s.Start("127.0.0.1:8080"); err != nil {
		log.Fatalf("error when starting server: %s", err)
	}
	defer s.Stop()

	time.Sleep(time.Second)
}

func ExampleCtx_ResponseStream() {
	s := &cadente.Server{
		Handler: func(ctx *cadente.Ctx) {
			w, err := ctx.ResponseStream(true)
			if err != nil {
				ctx.Logger().Printf("cannot acquire response stream: %s", err)
				return
			}
			for i := 0; i < 10; i++ {
				fmt.Fprintf(w, "chunk %d\n", i)
			}
		},
	}
	if err := s.Start("127.0.0.1:8080"); err != nil {
		log.Fatalf("error when starting server: %s", err)
	}
	defer s.Stop()
}

func ExampleServer_Next() {
	// With no Handler set, parsed requests are pulled by the embedding
	// engine instead of being dispatched on the connection's goroutine.
	s := &cadente.Server{
		PendingCapacity: 128,
	}
	if err := s.Start("127.0.0.1:8080"); err != nil {
		log.Fatalf("error when starting server: %s", err)
	}
	defer s.Stop()

	for {
		ctx, err := s.Next(context.Background())
		if err != nil {
			break
		}
		go func(ctx *cadente.Ctx) {
			ctx.Success("text/plain", []byte("processed"))
			ctx.Finish()
		}(ctx)
	}
}
