package repo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/voice-journal/core/internal/journal/model"
)

// encodeState flattens a state into hash field/value pairs, one field per
// state attribute. Values are JSON encoded.
func encodeState(s *model.ConversationState) (map[string]string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("flatten state: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = string(v)
	}
	return out, nil
}

// encodePatch returns the patch fields plus a refreshed last_updated.
func encodePatch(p model.StatePatch, now time.Time) (map[string]string, error) {
	fields := p.Fields()
	fields["last_updated"] = now
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}

// decodeState rebuilds a state from hash fields.
func decodeState(fields map[string]string) (*model.ConversationState, error) {
	raw := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		raw[k] = json.RawMessage(v)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("join state fields: %w", err)
	}
	var s model.ConversationState
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &s, nil
}

// hashArgs turns field/value pairs into HSET arguments.
func hashArgs(fields map[string]string) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// pairsToMap converts a flat HGETALL reply into a map.
func pairsToMap(reply []any) (map[string]string, error) {
	if len(reply)%2 != 0 {
		return nil, fmt.Errorf("odd hash reply length %d", len(reply))
	}
	out := make(map[string]string, len(reply)/2)
	for i := 0; i < len(reply); i += 2 {
		k, kok := reply[i].(string)
		v, vok := reply[i+1].(string)
		if !kok || !vok {
			return nil, fmt.Errorf("unexpected hash reply types %T/%T", reply[i], reply[i+1])
		}
		out[k] = v
	}
	return out, nil
}

// expiryFor returns when a day-scoped session record should expire: the end
// of its journaling day plus grace, and never sooner than grace from now.
func expiryFor(date string, loc *time.Location, grace time.Duration, now time.Time) time.Time {
	floor := now.Add(grace)
	day, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return floor
	}
	exp := day.AddDate(0, 0, 1).Add(grace)
	if exp.Before(floor) {
		return floor
	}
	return exp
}
