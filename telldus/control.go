package telldus

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CommandError is returned when Telldus Live refuses a device command.
type CommandError struct {
	Command string
	ID      string
	Reason  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s on %s was rejected: %s", e.Command, e.ID, e.Reason)
}

// Info is a flattened key/value view of a device or sensor.
type Info struct {
	Fields []Field
}

// Field is one line of an Info.
type Field struct {
	Key   string
	Value string
}

// DeviceInfo returns the details of one device.
func (c *Client) DeviceInfo(ctx context.Context, id string) (Info, error) {
	params := url.Values{"id": {id}, "supportedMethods": {strconv.Itoa(supportedMethods)}}
	payload, err := c.GetJSON(ctx, "/json/device/info", params)
	if err != nil {
		return Info{}, err
	}
	return infoFrom(payload)
}

// SensorInfo returns the details and latest values of one sensor.
func (c *Client) SensorInfo(ctx context.Context, id string) (Info, error) {
	params := url.Values{"id": {id}, "includeValues": {"1"}, "includeScale": {"1"}}
	payload, err := c.GetJSON(ctx, "/json/sensor/info", params)
	if err != nil {
		return Info{}, err
	}
	return infoFrom(payload)
}

// TurnOn switches a device on.
func (c *Client) TurnOn(ctx context.Context, id string) error {
	return c.command(ctx, "turnOn", id, nil)
}

// TurnOff switches a device off.
func (c *Client) TurnOff(ctx context.Context, id string) error {
	return c.command(ctx, "turnOff", id, nil)
}

// Dim sets a dimmable device to level (0-255).
func (c *Client) Dim(ctx context.Context, id string, level int) error {
	if level < 0 || level > 255 {
		return errors.Errorf("dim level %d out of range 0-255", level)
	}
	return c.command(ctx, "dim", id, url.Values{"level": {strconv.Itoa(level)}})
}

// supportedMethods is the TELLSTICK_TURNON|TURNOFF|DIM method mask.
const supportedMethods = 1 | 2 | 16

func (c *Client) command(ctx context.Context, name, id string, extra url.Values) error {
	params := url.Values{"id": {id}}
	for k, v := range extra {
		params[k] = v
	}

	payload, err := c.GetJSON(ctx, "/json/device/"+name, params)
	if err != nil {
		return err
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return errors.Wrapf(ErrUnexpectedResponse, "%s returned %T", name, payload)
	}
	if reason, ok := pickString(obj, "error"); ok {
		return &CommandError{Command: name, ID: id, Reason: reason}
	}
	if status, _ := pickString(obj, "status"); status != "success" {
		if status == "" {
			status = "no status"
		}
		return &CommandError{Command: name, ID: id, Reason: status}
	}
	return nil
}

func infoFrom(payload any) (Info, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return Info{}, errors.Wrapf(ErrUnexpectedResponse, "expected an object, got %T", payload)
	}
	if reason, ok := pickString(obj, "error"); ok {
		return Info{}, errors.Wrap(ErrUnexpectedResponse, reason)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var info Info
	for _, k := range keys {
		if k == "data" {
			continue
		}
		if v, ok := pickString(obj, k); ok {
			info.Fields = append(info.Fields, Field{Key: k, Value: v})
		}
	}
	if samples := sensorSamples(obj); samples != "" {
		info.Fields = append(info.Fields, Field{Key: "values", Value: samples})
	}
	return info, nil
}

// String renders the fields one per line.
func (i Info) String() string {
	var b strings.Builder
	for _, f := range i.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Key, f.Value)
	}
	return b.String()
}
