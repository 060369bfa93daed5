package core

// NodeAdapter adapts *Node (the libp2p host wrapper in network.go) to the
// networkAdapter seam consensus expects, translating its typed Message
// channel and topic-keyed peer map into the Broadcast/Subscribe shape used
// throughout core.

import "encoding/json"

type NodeAdapter struct{ *Node }

func (n *NodeAdapter) DialSeed(seeds []string) error { return n.Node.DialSeed(seeds) }

func (n *NodeAdapter) Broadcast(topic string, data interface{}) error {
	payload, ok := data.([]byte)
	if !ok {
		enc, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = enc
	}
	return n.Node.Broadcast(topic, payload)
}

func (n *NodeAdapter) Subscribe(topic string) (<-chan InboundMsg, func()) {
	ch, err := n.Node.Subscribe(topic)
	out := make(chan InboundMsg)
	if err != nil {
		close(out)
		return out, func() {}
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					close(out)
					return
				}
				out <- InboundMsg{PeerID: string(msg.From), Topic: msg.Topic, Payload: msg.Data}
			}
		}
	}()
	return out, func() { close(done) }
}

func (n *NodeAdapter) ListenAndServe() { n.Node.ListenAndServe() }
func (n *NodeAdapter) Close() error    { return n.Node.Close() }

func (n *NodeAdapter) Peers() []string {
	peers := n.Node.Peers()
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = string(p.ID)
	}
	return out
}
