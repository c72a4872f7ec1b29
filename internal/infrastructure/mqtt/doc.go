// Package mqtt provides MQTT client connectivity for the bridge.
//
// This package manages:
//   - Connection to the broker with a bounded retry loop, then auto-reconnect
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - A retained availability topic backed by Last Will and Testament
//   - The Inbox that decouples paho's delivery goroutine from the dispatcher
//
// # Architecture
//
// Home automation controllers publish commands under the configured prefix;
// the bridge consumes them and drives IR transceivers. Nothing is published
// in response.
//
//	Controller → MQTT Broker → Inbox → Router → Broadlink RM
//
// # Topics
//
//	<prefix>device/<name>/{send,learn,add,remove,discover}
//	<prefix>command/<name>/{add,add_pronto,remove}
//	<prefix>log/level
//	<prefix>status                 (retained, published by the bridge)
//
// # Security Considerations
//
//   - Enable TLS (mqtt.tls) when the broker is not on the same host
//   - Prefer M2B_MQTT_PASS over storing the password in the config file
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	inbox := mqtt.NewInbox(mqtt.DefaultInboxSize)
//	err = client.SubscribeAll(client.Topics().Subscriptions(), 1, inbox.Handler())
//
//	for {
//	    msg, err := inbox.Receive(ctx)
//	    ...
//	}
package mqtt
