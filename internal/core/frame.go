package core

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeFrame serialises a message once so it can be fanned out to many
// connections.
func EncodeFrame(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

// Send encodes v and queues it on a single connection.
func Send(c SignalConnection, v any) error {
	f, err := EncodeFrame(v)
	if err != nil {
		return err
	}
	return c.TrySend(f)
}
