package signal

import (
	"encoding/json"
	"fmt"
	"time"
)

// MarshalJSON flattens Extensions to top-level keys, as CloudEvents requires.
func (s Signal) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extensions)+8)
	out["id"] = s.ID
	out["source"] = s.Source
	out["type"] = s.Type
	out["specversion"] = s.SpecVersion
	if s.Subject != "" {
		out["subject"] = s.Subject
	}
	if !s.Time.IsZero() {
		out["time"] = s.Time.Format(time.RFC3339Nano)
	}
	if s.DataContentType != "" {
		out["datacontenttype"] = s.DataContentType
	}
	if s.Data != nil {
		out["data"] = s.Data
	}
	for k, v := range s.Extensions {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts unknown top-level keys (forward compatibility) and
// routes them into Extensions, per spec §6.1.
func (s *Signal) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	pop := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		return json.Unmarshal(v, dst)
	}

	if err := pop("id", &s.ID); err != nil {
		return fmt.Errorf("signal: decode id: %w", err)
	}
	if err := pop("source", &s.Source); err != nil {
		return fmt.Errorf("signal: decode source: %w", err)
	}
	if err := pop("type", &s.Type); err != nil {
		return fmt.Errorf("signal: decode type: %w", err)
	}
	if err := pop("specversion", &s.SpecVersion); err != nil {
		return fmt.Errorf("signal: decode specversion: %w", err)
	}
	if err := pop("subject", &s.Subject); err != nil {
		return fmt.Errorf("signal: decode subject: %w", err)
	}
	if err := pop("datacontenttype", &s.DataContentType); err != nil {
		return fmt.Errorf("signal: decode datacontenttype: %w", err)
	}
	if tv, ok := raw["time"]; ok {
		var str string
		if err := json.Unmarshal(tv, &str); err != nil {
			return fmt.Errorf("signal: decode time: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return fmt.Errorf("signal: parse time: %w", err)
		}
		s.Time = t
		delete(raw, "time")
	}
	if v, ok := raw["data"]; ok {
		var data any
		if err := json.Unmarshal(v, &data); err != nil {
			return fmt.Errorf("signal: decode data: %w", err)
		}
		s.Data = data
		delete(raw, "data")
	}

	if len(raw) > 0 {
		s.Extensions = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("signal: decode extension %q: %w", k, err)
			}
			s.Extensions[k] = val
		}
	}

	return nil
}
