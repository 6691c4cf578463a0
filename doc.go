// Package openclaw provides a client for the OpenClaw gateway protocol.
//
// The client keeps one persistent connection to a gateway and offers:
//   - Single-shot agent requests that wait for the final answer
//   - Streaming agent requests that yield text deltas as they arrive
//   - Presence and connect-snapshot state pushed by the gateway
//   - A supervisor that reconnects when the gateway stops answering
//
// # Quick Start
//
//	config := openclaw.DefaultConfig()
//	config.Token = os.Getenv("OPENCLAW_TOKEN")
//
//	client, err := openclaw.New(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	reply, err := client.SendAgentRequest(ctx, "What's the weather like?")
//
// Or stream the answer:
//
//	for delta, err := range client.StreamAgentRequest(ctx, "Tell me a story") {
//	    if err != nil {
//	        break
//	    }
//	    fmt.Print(delta)
//	}
//
// # Errors
//
// Errors match one of the Err* sentinels with errors.Is:
//
//	switch {
//	case errors.Is(err, openclaw.ErrPairingRequired):
//	    // approve this device on the gateway
//	case errors.Is(err, openclaw.ErrAuthentication):
//	    // fix the token
//	case errors.Is(err, openclaw.ErrTimeout):
//	    // retry later
//	}
//
// # Keeping the Connection Alive
//
//	supervisor := openclaw.NewSupervisor(client, config.HealthCheckInterval)
//	go supervisor.Run(ctx)
//
// # Transport Options
//
//   - WebSocket: the gateway's native endpoint (default)
//   - gRPC: JSON frames over a bidirectional stream
//   - Unix/TCP: length-prefixed JSON frames
package openclaw
