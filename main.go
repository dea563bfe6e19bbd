package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/valter-tonon/digimenu-core/lib/mypublisher"
	"github.com/valter-tonon/digimenu-core/lib/mypubsub"
	"github.com/valter-tonon/digimenu-core/lib/myqueue"
	"github.com/valter-tonon/digimenu-core/lib/myratelimit"
	"github.com/valter-tonon/digimenu-core/lib/mystore"
	"github.com/valter-tonon/digimenu-core/lib/mytime"
	"github.com/valter-tonon/digimenu-core/lib/myuuid"
	"github.com/valter-tonon/digimenu-core/services/cart"
	"github.com/valter-tonon/digimenu-core/services/session"
)

func main() {
	c := context.Background()

	router := mux.NewRouter()

	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	// /pubsub (outbox triggers) and /api (event pushes) carry system traffic
	// and stay outside the admission window
	limiter := myratelimit.New(nower)
	router.Use(myratelimit.Middleware(limiter, myratelimit.DefaultLimit, "/pubsub/", "/api/"))

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating queue: %s", err)
	}
	defer queueCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()
	publisher.RegisterEndpoints(c, router)

	sessionStore, sessionStoreCleanup, err := mystore.New[session.CheckoutSession](c)
	if err != nil {
		log.Fatalf("Error creating session store: %s", err)
	}
	defer sessionStoreCleanup()

	sessionService := session.NewService(sessionStore, nower, uuider, publisher)
	err = sessionService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering session service: %s", err)
	}

	cartStore, cartStoreCleanup, err := mystore.New[cart.Cart](c)
	if err != nil {
		log.Fatalf("Error creating cart store: %s", err)
	}
	defer cartStoreCleanup()

	cartService := cart.NewService(cartStore, nower, pubsub, publisher)
	err = cartService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering cart service: %s", err)
	}

	startWebServerBlocking(router)
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
