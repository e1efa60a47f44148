package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"

	"github.com/railwayapp/wharf/internal/config"
	"github.com/railwayapp/wharf/internal/ctxlog"
)

// ServiceLabel is the label the backend puts on every container it creates.
const ServiceLabel = "com.docker.compose.service"

// InspectDelimiter separates fields of template introspection records. It
// must not appear in container ids, service names or addresses.
const InspectDelimiter = "|"

var inspectTemplate = strings.Join([]string{
	"{{.Id}}",
	`{{index .Config.Labels "` + ServiceLabel + `"}}`,
	"{{.State.Running}}",
	"{{range .NetworkSettings.Networks}}{{.IPAddress}} {{end}}",
}, InspectDelimiter)

// ErrMalformedInspect is returned when introspection output cannot be parsed.
var ErrMalformedInspect = errors.New("malformed container introspection output")

// Container is a snapshot of one backend container.
type Container struct {
	ID      string `json:"id"`
	Service string `json:"service"`
	Running bool   `json:"running"`
	// IP is the first non-empty address in network name order, empty when
	// the container has none. Both introspection modes follow this rule.
	IP string `json:"ip,omitempty"`
}

// Containers returns the containers of the project sorted by service name.
// It never returns nil on success.
func (d *Driver) Containers(ctx context.Context) ([]Container, error) {
	logger := ctxlog.FromContext(ctx)

	out, err := d.composeOutput(ctx, "ps", "-a", "-q")
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	ids := strings.Fields(out)
	logger.Debug("backend container ids", "ids", ids)
	if len(ids) == 0 {
		return []Container{}, nil
	}

	var containers []Container
	if d.introspection == config.IntrospectionTemplate {
		containers, err = d.inspectTemplate(ctx, ids)
	} else {
		containers, err = d.inspectJSON(ctx, ids)
	}
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(containers, func(a, b Container) int {
		return strings.Compare(a.Service, b.Service)
	})
	return containers, nil
}

// Container looks a container up by service name. The boolean is false when
// the service has no container.
func (d *Driver) Container(ctx context.Context, service string) (Container, bool, error) {
	if err := d.EnsureDescriptor(ctx); err != nil {
		return Container{}, false, err
	}
	containers, err := d.Containers(ctx)
	if err != nil {
		return Container{}, false, err
	}
	for _, c := range containers {
		if c.Service == service {
			return c, true, nil
		}
	}
	return Container{}, false, nil
}

// IsRunning reports whether at least one container of the project runs.
func (d *Driver) IsRunning(ctx context.Context) (bool, error) {
	if err := d.EnsureDescriptor(ctx); err != nil {
		return false, err
	}
	containers, err := d.Containers(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(containers, func(c Container) bool { return c.Running }), nil
}

func (d *Driver) inspectJSON(ctx context.Context, ids []string) ([]Container, error) {
	out, err := d.runner.Output(ctx, d.docker, append([]string{"inspect"}, ids...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect containers: %w", err)
	}
	return ParseInspectJSON([]byte(out))
}

func (d *Driver) inspectTemplate(ctx context.Context, ids []string) ([]Container, error) {
	args := append([]string{"inspect", "-f", inspectTemplate}, ids...)
	out, err := d.runner.Output(ctx, d.docker, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect containers: %w", err)
	}
	return ParseInspectTemplate(out)
}

// ParseInspectJSON decodes the output of `docker inspect`.
func ParseInspectJSON(data []byte) ([]Container, error) {
	var inspected []types.ContainerJSON
	if err := json.Unmarshal(data, &inspected); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInspect, err)
	}

	containers := make([]Container, 0, len(inspected))
	for _, info := range inspected {
		if info.ContainerJSONBase == nil || info.ID == "" {
			return nil, fmt.Errorf("%w: container without id", ErrMalformedInspect)
		}
		c := Container{ID: info.ID}
		if info.Config != nil {
			c.Service = info.Config.Labels[ServiceLabel]
		}
		if info.State != nil {
			c.Running = info.State.Running
		}
		if info.NetworkSettings != nil {
			names := make([]string, 0, len(info.NetworkSettings.Networks))
			for name := range info.NetworkSettings.Networks {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				if ep := info.NetworkSettings.Networks[name]; ep != nil && ep.IPAddress != "" {
					c.IP = ep.IPAddress
					break
				}
			}
		}
		containers = append(containers, c)
	}
	return containers, nil
}

// ParseInspectTemplate parses one delimited record per line.
func ParseInspectTemplate(out string) ([]Container, error) {
	containers := []Container{}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, InspectDelimiter)
		if len(parts) != 4 || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedInspect, line)
		}
		running, err := strconv.ParseBool(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedInspect, line)
		}
		c := Container{ID: parts[0], Service: parts[1], Running: running}
		// range over a map visits networks in key order; empty addresses
		// leave only the separator and are dropped by Fields
		if ips := strings.Fields(parts[3]); len(ips) > 0 {
			c.IP = ips[0]
		}
		containers = append(containers, c)
	}
	return containers, nil
}
