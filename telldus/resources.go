package telldus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/korovkin/limiter"
	"github.com/pkg/errors"
)

// Category is the kind of a listed resource.
type Category int

const (
	CategoryController Category = iota
	CategoryDevice
	CategorySensor
)

func (c Category) String() string {
	switch c {
	case CategoryController:
		return "controller"
	case CategoryDevice:
		return "device"
	case CategorySensor:
		return "sensor"
	default:
		return "unknown"
	}
}

// Entry is one row of a resource listing. Details is empty when nothing
// beyond the name is known.
type Entry struct {
	Category Category
	ID       string
	Name     string
	Details  string
}

// Kind selects which categories a listing covers.
type Kind string

const (
	KindAll         Kind = "all"
	KindControllers Kind = "controllers"
	KindDevices     Kind = "devices"
	KindSensors     Kind = "sensors"
)

// ParseKind validates a --kind value.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAll, KindControllers, KindDevices, KindSensors:
		return k, nil
	default:
		return "", errors.Errorf("unknown kind %q (expected all, controllers, devices or sensors)", s)
	}
}

// List returns the entries for kind, unsorted.
func (c *Client) List(ctx context.Context, kind Kind) ([]Entry, error) {
	switch kind {
	case KindAll, "":
		return c.ListAll(ctx)
	case KindControllers:
		return c.ListControllers(ctx)
	case KindDevices:
		return c.ListDevices(ctx)
	case KindSensors:
		return c.ListSensors(ctx)
	default:
		return nil, errors.Errorf("unknown kind %q", kind)
	}
}

// ListControllers lists the Telldus gateways on the account.
func (c *Client) ListControllers(ctx context.Context) ([]Entry, error) {
	payload, err := c.GetJSON(ctx, "/json/clients/list", nil)
	if err != nil {
		return nil, err
	}

	items := arrayFrom(payload, "client", "clients")
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var details []string
		if online, ok := pickString(item, "online"); ok {
			switch online {
			case "1", "true", "True", "TRUE":
				details = append(details, "online")
			case "0", "false", "False", "FALSE":
				details = append(details, "offline")
			}
		}
		if lastSeen, ok := pickString(item, "lastSeen", "lastseen"); ok && lastSeen != "0" {
			details = append(details, "lastSeen="+lastSeen)
		}
		if fw, ok := pickString(item, "firmware", "firmwareVersion"); ok {
			details = append(details, "fw="+fw)
		}

		entries = append(entries, Entry{
			Category: CategoryController,
			ID:       pickStringOr(item, "?", "id", "clientId"),
			Name:     pickStringOr(item, "(controller)", "name", "clientName"),
			Details:  detailsToString(details),
		})
	}
	return entries, nil
}

// ListDevices lists the devices on the account.
func (c *Client) ListDevices(ctx context.Context) ([]Entry, error) {
	payload, err := c.GetJSON(ctx, "/json/devices/list", nil)
	if err != nil {
		return nil, err
	}

	items := arrayFrom(payload, "device", "devices")
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var details []string
		if model, ok := pickString(item, "model", "deviceType", "type"); ok {
			details = append(details, model)
		}
		if state, ok := pickString(item, "statevalue", "state", "stateValue"); ok {
			details = append(details, "state="+state)
		}
		if client, ok := pickString(item, "clientName"); ok {
			details = append(details, "client="+client)
		}

		entries = append(entries, Entry{
			Category: CategoryDevice,
			ID:       pickStringOr(item, "?", "id", "deviceId"),
			Name:     pickStringOr(item, "(unnamed device)", "name"),
			Details:  detailsToString(details),
		})
	}
	return entries, nil
}

// ListSensors lists the non-ignored sensors with their latest values.
func (c *Client) ListSensors(ctx context.Context) ([]Entry, error) {
	params := url.Values{
		"includeIgnored": {"0"},
		"includeValues":  {"1"},
		"includeScale":   {"1"},
	}
	payload, err := c.GetJSON(ctx, "/json/sensors/list", params)
	if err != nil {
		return nil, err
	}

	items := arrayFrom(payload, "sensor", "sensors")
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var details []string
		if model, ok := pickString(item, "model"); ok {
			details = append(details, model)
		}
		if protocol, ok := pickString(item, "protocol"); ok {
			details = append(details, "protocol="+protocol)
		}
		if samples := sensorSamples(item); samples != "" {
			details = append(details, samples)
		}

		entries = append(entries, Entry{
			Category: CategorySensor,
			ID:       pickStringOr(item, "?", "id", "sensorId"),
			Name:     pickStringOr(item, "(unnamed sensor)", "name"),
			Details:  detailsToString(details),
		})
	}
	return entries, nil
}

func sensorSamples(sensor any) string {
	obj, ok := sensor.(map[string]any)
	if !ok {
		return ""
	}
	data, ok := obj["data"].([]any)
	if !ok {
		return ""
	}

	var samples []string
	for _, d := range data {
		name, ok := pickString(d, "name")
		if !ok {
			continue
		}
		value, _ := pickString(d, "value")
		sample := name + "=" + value
		if scale, ok := pickString(d, "scale"); ok {
			sample += "@" + scale
		}
		samples = append(samples, sample)
	}
	return strings.Join(samples, ", ")
}

// ListAll fetches controllers, devices and sensors concurrently and returns
// them in that order. The first failing category, in that order, is reported.
func (c *Client) ListAll(ctx context.Context) ([]Entry, error) {
	fetchers := []func(context.Context) ([]Entry, error){
		c.ListControllers,
		c.ListDevices,
		c.ListSensors,
	}
	results := make([][]Entry, len(fetchers))
	errs := make([]error, len(fetchers))

	limit := limiter.NewConcurrencyLimiter(c.concurrency)
	for i, fetch := range fetchers {
		i, fetch := i, fetch
		limit.ExecuteWithTicket(func(_ int) {
			results[i], errs[i] = fetch(ctx)
		})
	}
	limit.Wait()

	var all []Entry
	for i := range fetchers {
		if errs[i] != nil {
			return nil, errs[i]
		}
		all = append(all, results[i]...)
	}
	return all, nil
}

// SortEntries orders entries by category, then name, then id.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// arrayFrom returns payload itself when it is an array, otherwise the first
// array found under one of keys.
func arrayFrom(payload any, keys ...string) []any {
	if arr, ok := payload.([]any); ok {
		return arr
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range keys {
		if arr, ok := obj[key].([]any); ok {
			return arr
		}
	}
	return nil
}

// pickString returns the first non-empty value among keys, rendered as text.
// Strings are trimmed; null values are skipped.
func pickString(value any, keys ...string) (string, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range keys {
		found, ok := obj[key]
		if !ok {
			continue
		}
		if text, ok := valueAsString(found); ok && text != "" {
			return text, true
		}
	}
	return "", false
}

func pickStringOr(value any, fallback string, keys ...string) string {
	if s, ok := pickString(value, keys...); ok {
		return s
	}
	return fallback
}

func valueAsString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case bool:
		return fmt.Sprintf("%t", t), true
	case float64:
		return fmt.Sprintf("%v", t), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

func detailsToString(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
