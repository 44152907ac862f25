// Package bus is the in-process publish/subscribe channel that decouples the
// well-picking UI from the document editor.
//
// A Bus owns a set of typed topics. The WellPicked topic is fixed and carries
// labware.WellLocation values; any other UI-defined event goes through a
// Custom topic carrying arbitrary payloads. Components that need a private
// typed topic create one with NewTopic.
//
// # Delivery
//
// Each subscription has its own buffered channel. Publish never blocks: when
// a subscriber's buffer is full the envelope is dropped for that subscriber,
// counted in the metrics, and logged at warn level. Publishers are never held
// up by slow readers.
//
//	b := bus.New(bus.DefaultConfig())
//	sub := b.WellPicked.Subscribe("picking")
//	b.WellPicked.Publish(ctx, "rack-view", labware.WellLocation{RackID: "r1", WellNumber: 4})
//	env, err := sub.Receive(ctx)
//
// A publisher never receives its own envelopes when it subscribed under the
// same name it publishes from.
package bus
