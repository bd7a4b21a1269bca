package cache

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kjstillabower/pasture-weather-service/internal/models"
)

// encodeResult packs a result as MessagePack keyed by its JSON field names,
// so cached values and msgpack API responses share one layout.
func encodeResult(v models.SimulationResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeResult(raw []byte) (models.SimulationResult, error) {
	var v models.SimulationResult
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&v); err != nil {
		return models.SimulationResult{}, err
	}
	return v, nil
}
