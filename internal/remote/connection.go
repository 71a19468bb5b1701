// Package remote talks to the JSON automation API of locally running CAD
// instances. It handles both built-in commands (API.*) and add-on commands,
// which are tunneled through API.ExecuteAddOnCommand and unwrapped.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/cadbridge/cadbridge/internal/shared/errs"
)

// builtinPrefix marks commands handled by the built-in API rather than the
// add-on.
const builtinPrefix = "API."

// codeCommandNotFound is the remote's error code for an unknown command name.
// Observed behavior: receiving it in response to an add-on call proves the
// add-on itself is installed, whereas a "not registered" error with any other
// code means the add-on is missing.
const codeCommandNotFound = 4010

const addOnInstallSuggestion = "Install the automation add-on in the CAD application and retry"

// Info carries the project metadata captured while probing an instance.
type Info struct {
	ProjectName string
	ProjectPath string
	Version     string
	IsTeamwork  bool
	Untitled    bool
}

// Connection reaches a single CAD instance over its local JSON API.
type Connection struct {
	Port int
	URL  string
	Info Info

	client    *resty.Client
	namespace string

	mu             sync.Mutex
	addOnAvailable *bool // nil = unknown
}

// NewClient creates the resty client shared by connections, with sonic as
// the JSON codec.
func NewClient(timeout time.Duration) *resty.Client {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	c.JSONMarshal = sonic.Marshal
	c.JSONUnmarshal = sonic.Unmarshal
	return c
}

// NewConnection creates a connection to the instance on the given port.
func NewConnection(port int, client *resty.Client, namespace string, info Info) *Connection {
	return &Connection{
		Port:      port,
		URL:       fmt.Sprintf("http://127.0.0.1:%d", port),
		Info:      info,
		client:    client,
		namespace: namespace,
	}
}

type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type commandResponse struct {
	Succeeded bool           `json:"succeeded"`
	Result    map[string]any `json:"result"`
	Error     *apiError      `json:"error"`
}

// Execute runs a command, routing API.* names to the built-in API and
// everything else to the add-on.
func (c *Connection) Execute(ctx context.Context, command string, parameters map[string]any) (map[string]any, error) {
	if parameters == nil {
		parameters = map[string]any{}
	}
	if strings.HasPrefix(command, builtinPrefix) {
		return c.ExecuteBuiltin(ctx, command, parameters)
	}
	return c.ExecuteAddOn(ctx, command, parameters)
}

// ExecuteBuiltin runs a built-in API command.
func (c *Connection) ExecuteBuiltin(ctx context.Context, command string, parameters map[string]any) (map[string]any, error) {
	resp, err := c.post(ctx, commandRequest{Command: command, Parameters: parameters})
	if err != nil {
		return nil, err
	}

	if !resp.Succeeded {
		if resp.Error != nil {
			return nil, errs.New(errs.KindCommand, resp.Error.Message).
				WithDetail("command", command).
				WithDetail("code", resp.Error.Code).
				WithSuggestion("Check command parameters")
		}
		return nil, errs.New(errs.KindCommand, "Command failed").
			WithDetail("command", command)
	}

	if resp.Result == nil {
		return map[string]any{}, nil
	}
	return resp.Result, nil
}

// ExecuteAddOn runs an add-on command, wrapping it in API.ExecuteAddOnCommand
// and unwrapping the add-on response.
func (c *Connection) ExecuteAddOn(ctx context.Context, command string, parameters map[string]any) (map[string]any, error) {
	c.mu.Lock()
	known := c.addOnAvailable
	c.mu.Unlock()
	if known != nil && !*known {
		return nil, c.addOnMissingError(command)
	}

	req := commandRequest{
		Command: "API.ExecuteAddOnCommand",
		Parameters: map[string]any{
			"addOnCommandId": map[string]any{
				"commandNamespace": c.namespace,
				"commandName":      command,
			},
			"addOnCommandParameters": parameters,
		},
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.Succeeded {
		var code int
		var msg string
		if resp.Error != nil {
			code = resp.Error.Code
			msg = resp.Error.Message
		}

		// The remote reports "not registered" both when the add-on namespace
		// is missing and when the add-on is absent entirely. Only a non-4010
		// code distinguishes the latter.
		if code != codeCommandNotFound && strings.Contains(strings.ToLower(msg), "not registered") {
			c.setAddOnAvailable(false)
			return nil, c.addOnMissingError(command)
		}

		if code == codeCommandNotFound {
			c.setAddOnAvailable(true)
			return nil, errs.Newf(errs.KindCommand, "Unknown add-on command: %s", command).
				WithDetail("command", command).
				WithDetail("code", code).
				WithSuggestion("Check the command name against the documentation search")
		}

		if resp.Error != nil {
			return nil, errs.New(errs.KindCommand, msg).
				WithDetail("command", command).
				WithDetail("code", code)
		}
		return nil, errs.New(errs.KindCommand, "Command failed").
			WithDetail("command", command)
	}

	addOnResp, _ := resp.Result["addOnCommandResponse"].(map[string]any)
	if addOnResp == nil {
		addOnResp = map[string]any{}
	}

	// The add-on signals failures through an "error" field inside an
	// otherwise successful response.
	if em, ok := addOnResp["error"].(map[string]any); ok && len(em) > 0 {
		msg, _ := em["message"].(string)
		if msg == "" {
			msg = "Add-on command failed"
		}
		e := errs.New(errs.KindCommand, msg).WithDetail("command", command)
		if code, ok := em["code"]; ok {
			e = e.WithDetail("code", code)
		}
		return nil, e
	}

	c.setAddOnAvailable(true)
	return addOnResp, nil
}

// IsAlive reports whether the instance responds to the liveness command.
func (c *Connection) IsAlive(ctx context.Context) bool {
	_, err := c.ExecuteBuiltin(ctx, "API.IsAlive", map[string]any{})
	return err == nil
}

// CheckAddOn probes whether the automation add-on is installed, caching the
// result. A command error during probing still proves the add-on is present.
func (c *Connection) CheckAddOn(ctx context.Context) bool {
	c.mu.Lock()
	known := c.addOnAvailable
	c.mu.Unlock()
	if known != nil {
		return *known
	}

	_, err := c.ExecuteAddOn(ctx, "GetAddOnVersion", map[string]any{})
	if err == nil {
		return true
	}

	var se *errs.Error
	if errors.As(err, &se) && se.Kind == errs.KindCommand {
		c.setAddOnAvailable(true)
		return true
	}
	return false
}

// AddOnAvailable returns the cached probe result, defaulting to false when
// the add-on has not been probed yet.
func (c *Connection) AddOnAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addOnAvailable != nil && *c.addOnAvailable
}

func (c *Connection) setAddOnAvailable(v bool) {
	c.mu.Lock()
	c.addOnAvailable = &v
	c.mu.Unlock()
}

func (c *Connection) addOnMissingError(command string) error {
	return errs.New(errs.KindCapabilityUnavailable, "Automation add-on is not installed").
		WithDetail("port", c.Port).
		WithDetail("command", command).
		WithSuggestion(addOnInstallSuggestion)
}

func (c *Connection) post(ctx context.Context, req commandRequest) (*commandResponse, error) {
	var resp commandResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.URL)
	if err != nil {
		return nil, errs.Newf(errs.KindConnectivity, "Cannot connect to CAD instance on port %d", c.Port).
			WithDetail("port", c.Port).
			WithDetail("error", err.Error()).
			WithSuggestion("Ensure the CAD application is running with its JSON API enabled")
	}
	if res.StatusCode() != 200 {
		return nil, errs.Newf(errs.KindConnectivity, "CAD instance on port %d returned HTTP %d", c.Port, res.StatusCode()).
			WithDetail("port", c.Port).
			WithDetail("status", res.StatusCode())
	}
	return &resp, nil
}
