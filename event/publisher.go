// Package event is a small synchronous publish/subscribe hub. Subscribers of a topic run in
// registration order on the goroutine that publishes, so observers see events in the order
// the publisher produced them.
package event

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kubovy/serial-communication/log"
)

// Subscriber receives the payload of a published event.
type Subscriber func(payload any)

// Topic holds the subscribers of one event name.
type Topic struct {
	name        string
	subscribers []Subscriber
}

// Publisher includes multiple topics.
type Publisher struct {
	lock   sync.RWMutex
	topics map[string]*Topic
}

// NewPublisher creates a publisher with the given topics already declared.
func NewPublisher(topics ...string) *Publisher {
	p := &Publisher{topics: make(map[string]*Topic, len(topics))}
	for _, name := range topics {
		p.topics[name] = &Topic{name: name}
	}
	return p
}

// NewTopic must create a topic before you can initiate a subscription.
func (p *Publisher) NewTopic(topicName string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.topics[topicName]; ok {
		return fmt.Errorf("topic %s already created", topicName)
	}
	p.topics[topicName] = &Topic{name: topicName}
	return nil
}

// RegisterSubscriber appends fn to the subscribers of topicName.
func (p *Publisher) RegisterSubscriber(topicName string, fn Subscriber) error {
	if fn == nil {
		return fmt.Errorf("nil subscriber for topic %s", topicName)
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	topic, ok := p.topics[topicName]
	if !ok {
		return fmt.Errorf("topic %s not created", topicName)
	}
	topic.subscribers = append(topic.subscribers, fn)
	log.Debug().Str("topic", topicName).Int("num", len(topic.subscribers)).Msg("add subscriber")
	return nil
}

// Publish calls every subscriber of topicName with payload and returns once all of them
// have run. A panicking subscriber is logged and does not stop the others.
func (p *Publisher) Publish(topicName string, payload any) error {
	p.lock.RLock()
	topic, ok := p.topics[topicName]
	var subs []Subscriber
	if ok {
		subs = topic.subscribers
	}
	p.lock.RUnlock()

	if !ok {
		return fmt.Errorf("topic %s not created", topicName)
	}

	for _, sub := range subs {
		p.call(topicName, sub, payload)
	}
	return nil
}

func (p *Publisher) call(topicName string, sub Subscriber, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("topic", topicName).Str("panic", fmt.Sprint(r)).Msg("subscriber panicked")
		}
	}()
	sub(payload)
}

// SubscriberCount returns the number of subscribers of topicName.
func (p *Publisher) SubscriberCount(topicName string) int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if topic, ok := p.topics[topicName]; ok {
		return len(topic.subscribers)
	}
	return 0
}

// Topics lists the declared topics in lexical order.
func (p *Publisher) Topics() []string {
	p.lock.RLock()
	names := make([]string, 0, len(p.topics))
	for name := range p.topics {
		names = append(names, name)
	}
	p.lock.RUnlock()
	sort.Strings(names)
	return names
}
