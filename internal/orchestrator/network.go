package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"

	"github.com/railwayapp/wharf/internal/ctxlog"
)

// ensureNetworkCommunication attaches the container this process runs in, if
// any, to the environment network so that it can reach the services. The
// error is informational; callers discard it.
func (d *Driver) ensureNetworkCommunication(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	self, err := d.detectOwnContainer(ctx)
	if err != nil {
		return err
	}
	if self == "" {
		// not containerized, the host reaches the network directly
		return nil
	}
	logger.Debug("execution from inside a container detected", "container", self)

	target := self
	out, err := d.runner.Output(ctx, d.docker, "inspect", "-f", "{{.HostConfig.NetworkMode}}", self)
	if err != nil {
		return err
	}
	if mode := container.NetworkMode(strings.TrimSpace(out)); mode.IsContainer() {
		target = mode.ConnectedContainer()
		logger.Debug("detected a shared container network stack", "container", target)
	}

	logger.Debug("attaching container to network", "container", target, "network", d.NetworkName())
	status, err := d.runner.Run(ctx, d.docker, "network", "connect", d.NetworkName(), target)
	if err != nil {
		return err
	}
	if status != 0 {
		return fmt.Errorf("network connect exited with status %d", status)
	}
	return nil
}

// detectOwnContainer returns the id of the running container whose id or
// name matches the local hostname, or "" when there is none.
func (d *Driver) detectOwnContainer(ctx context.Context) (string, error) {
	host, err := d.hostname()
	if err != nil {
		return "", err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", nil
	}

	out, err := d.runner.Output(ctx, d.docker, "ps", "--no-trunc", "--format", "{{.ID}} {{.Names}}")
	if err != nil {
		return "", err
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		id, names := fields[0], ""
		if len(fields) > 1 {
			names = fields[1]
		}
		// kubernetes pause containers share the pod hostname
		if strings.Contains(names, "k8s_POD") {
			continue
		}
		if strings.HasPrefix(id, host) || names == host {
			return id, nil
		}
	}
	return "", scanner.Err()
}

func (d *Driver) removeNetwork(ctx context.Context) error {
	_, err := d.runner.Output(ctx, d.docker, "network", "rm", d.NetworkName())
	return err
}
