// Package mqtt publishes hashpipe status snapshots to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect (paho.mqtt.golang)
//   - Retained status documents, one topic per hashpipe instance
//   - A retained availability topic backed by a Last Will and Testament
//
// # Topics
//
//	<prefix>/<gateway>/<instance>/status   retained JSON snapshot
//	<prefix>/<gateway>/availability        "online" / "offline"
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Gateway.Name)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{Prefix: "hashpipe", Gateway: "px1"}.Status(0)
//	err = client.Publish(topic, payload, 0, true)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package mqtt
