package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/eleven-am/meandra"
	"github.com/eleven-am/meandra/internal/xjson"
)

const (
	envRunID       = "MEANDRA_RUN_ID"
	envNodeID      = "MEANDRA_NODE_ID"
	envInputPrefix = "MEANDRA_INPUT_"

	// stderrTailLimit bounds how much captured stderr travels inside a
	// failure message.
	stderrTailLimit = 512
)

var execParams = meandra.ParamSet{
	"command": {Type: meandra.ParamString, Required: true},
	"shell":   {Type: meandra.ParamString, Default: "/bin/sh"},
	"dir":     {Type: meandra.ParamString},
	"capture": {Type: meandra.ParamString},
}

// execNode runs one shell command per invocation. Run and node identity and
// every resolved input are exposed to the command as environment variables;
// with the capture param set, trimmed stdout is returned under that output
// key.
type execNode struct {
	logger *slog.Logger
}

func newExecNode(logger *slog.Logger) *execNode {
	if logger == nil {
		logger = slog.Default()
	}
	return &execNode{logger: logger.With("component", "exec_node")}
}

func (n *execNode) Kind() string { return "exec" }

func (n *execNode) Validate(params map[string]interface{}) error {
	return execParams.Validate(params)
}

func (n *execNode) Execute(ctx context.Context, call meandra.NodeCall) (map[string]interface{}, error) {
	params, err := execParams.Apply(call.Params)
	if err != nil {
		return nil, err
	}
	command := params["command"].(string)
	shell := params["shell"].(string)

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	if dir, ok := params["dir"].(string); ok && dir != "" {
		cmd.Dir = dir
	}

	env := append(os.Environ(), envRunID+"="+call.RunID, envNodeID+"="+call.NodeID)
	for key, value := range call.Inputs {
		encoded, err := xjson.Marshal(value)
		if err != nil {
			n.logger.Warn("input not representable as env var, skipping",
				"node_id", call.NodeID, "key", key, "error", err.Error())
			continue
		}
		env = append(env, inputEnvName(key)+"="+string(encoded))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	n.logger.Debug("running command", "node_id", call.NodeID, "command", command)
	if err := cmd.Run(); err != nil {
		if tail := tailOf(stderr.String()); tail != "" {
			return nil, fmt.Errorf("command failed: %w: %s", err, tail)
		}
		return nil, fmt.Errorf("command failed: %w", err)
	}

	outputs := map[string]interface{}{}
	if capture, ok := params["capture"].(string); ok && capture != "" {
		outputs[capture] = strings.TrimRight(stdout.String(), "\n")
	}
	return outputs, nil
}

// inputEnvName maps an input key to an environment variable name: upper
// case, with every byte outside [A-Z0-9] replaced by an underscore. Scoped
// keys like enrich/joined become ENRICH_JOINED.
func inputEnvName(key string) string {
	upper := strings.ToUpper(key)
	mapped := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
	return envInputPrefix + mapped
}

func tailOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTailLimit {
		return s
	}
	return "..." + s[len(s)-stderrTailLimit:]
}
