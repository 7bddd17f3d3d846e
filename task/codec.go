package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/headless/payload"
)

// wireConfig is the persisted shape of a Config.
type wireConfig struct {
	TaskKey             string      `json:"task_key"`
	Data                payload.Map `json:"data"`
	TimeoutMs           int64       `json:"timeout_ms"`
	AllowedInForeground bool        `json:"allowed_in_foreground"`
	NumberOfRetries     int         `json:"number_of_retries"`
	RetryDelayMs        int64       `json:"retry_delay_ms"`
}

// Encode serialises c as JSON for stores and the dead letter queue.
func Encode(c Config) ([]byte, error) {
	data, err := json.Marshal(wireConfig{
		TaskKey:             c.taskKey,
		Data:                c.data,
		TimeoutMs:           ceilMs(c.timeout),
		AllowedInForeground: c.allowedInForeground,
		NumberOfRetries:     c.numberOfRetries,
		RetryDelayMs:        ceilMs(c.retryDelay),
	})
	if err != nil {
		return nil, fmt.Errorf("task %q: encode: %w", c.taskKey, err)
	}
	return data, nil
}

// ceilMs converts d to whole milliseconds, rounding positive fractions up
// so a bounded duration never persists as the 0 sentinel.
func ceilMs(d time.Duration) int64 {
	ms := d.Milliseconds()
	if d > 0 && d%time.Millisecond != 0 {
		ms++
	}
	return ms
}

// Decode rebuilds a Config produced by Encode. Numbers in the payload are
// decoded as json.Number so integers keep their precision.
func Decode(b []byte) (Config, error) {
	var w struct {
		wireConfig
		Data map[string]any `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return Config{}, fmt.Errorf("task: decode: %w", err)
	}
	var data payload.Map
	if w.Data != nil {
		var err error
		if data, err = payload.Normalize(w.Data); err != nil {
			return Config{}, fmt.Errorf("task %q: decode payload: %w", w.TaskKey, err)
		}
	}
	return NewWithRetries(w.TaskKey, data, w.TimeoutMs, w.AllowedInForeground,
		w.NumberOfRetries, w.RetryDelayMs), nil
}
