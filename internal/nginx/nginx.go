// Package nginx renders, installs and validates the reverse-proxy site for a
// deployed app. The site forwards port 80 to the app's published port and
// serves a static /health endpoint from Nginx itself.
package nginx

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/viper"

	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/remote"
	"github.com/dockhand/dockhand/internal/runlog"
)

var siteTemplate = template.Must(template.New("site").Parse(`server {
    listen 80;
    server_name {{.ServerName}};

    location / {
        proxy_pass http://localhost:{{.AppPort}};
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection 'upgrade';
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
        proxy_connect_timeout 60s;
        proxy_send_timeout 60s;
        proxy_read_timeout 60s;
    }

    location /health {
        access_log off;
        return 200 "healthy\n";
        add_header Content-Type text/plain;
    }
}
`))

type siteData struct {
	ServerName string
	AppPort    int
}

// Render produces the site configuration for the plan.
func Render(plan config.Plan) (string, error) {
	var buf bytes.Buffer
	err := siteTemplate.Execute(&buf, siteData{
		ServerName: plan.RemoteHost,
		AppPort:    plan.AppPort,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render site config: %w", err)
	}
	return buf.String(), nil
}

// Install writes the rendered site into sites-available, links it into
// sites-enabled, then runs the config test and reloads. A failed config test
// or reload aborts: a broken proxy must never be left live.
func Install(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) error {
	site, err := Render(plan)
	if err != nil {
		return err
	}

	write := fmt.Sprintf("sudo tee %s >/dev/null", remote.Quote(plan.SitePath()))
	res, err := runner.RunWithStdin(ctx, write, strings.NewReader(site))
	if err != nil {
		return fmt.Errorf("failed to write site config: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("failed to write site config: %s", res.Output())
	}
	log.Successf("Site config written to %s", plan.SitePath())

	link := fmt.Sprintf("sudo ln -sfn %s %s", remote.Quote(plan.SitePath()), remote.Quote(plan.SiteLinkPath()))
	if res, err := runner.Run(ctx, link); err != nil || res.ExitCode != 0 {
		return fmt.Errorf("failed to enable site: %s", diag(res, err))
	}

	// The distribution default site also listens on port 80 and would
	// shadow ours on a fresh host.
	if res, err := runner.Run(ctx, "sudo rm -f /etc/nginx/sites-enabled/default"); err != nil || res.ExitCode != 0 {
		log.Warnf("Could not remove default site: %s (continuing)", diag(res, err))
	}

	if res, err := runner.Run(ctx, "sudo nginx -t"); err != nil || res.ExitCode != 0 {
		return fmt.Errorf("nginx config test failed: %s", diag(res, err))
	}
	log.Successf("Nginx config test passed")

	if res, err := runner.Run(ctx, "sudo systemctl reload nginx"); err != nil || res.ExitCode != 0 {
		return fmt.Errorf("nginx reload failed: %s", diag(res, err))
	}
	log.Successf("Nginx reloaded")
	return nil
}

// Validate confirms the proxy is serving: the nginx unit must be active
// (fatal), then the site is probed from the host and from the operator's
// machine (both warnings, networks between the two are not ours to judge).
func Validate(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) error {
	res, err := runner.Run(ctx, "systemctl is-active nginx")
	if err != nil {
		return fmt.Errorf("could not query nginx state: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("nginx is not active: %s", res.Output())
	}
	log.Successf("Nginx is active")

	if res, err := runner.Run(ctx, "curl -sf -m 10 -o /dev/null http://localhost/health"); err != nil || res.ExitCode != 0 {
		log.Warnf("Local proxy probe failed: %s", diag(res, err))
	} else {
		log.Successf("Proxy answers on the host")
	}

	probePublic(ctx, plan, log)
	return nil
}

// probePublic hits the proxy over the public address. Operator-side
// firewalls or cloud security groups can fail this while the host itself is
// healthy, so the result is informational.
func probePublic(ctx context.Context, plan config.Plan, log *runlog.Log) {
	client := &http.Client{Timeout: viper.GetDuration(config.KeyProbeTimeout)}
	url := fmt.Sprintf("http://%s/health", plan.RemoteHost)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warnf("Public probe setup failed: %v", err)
		return
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Warnf("Public probe of %s failed: %v", url, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warnf("Public probe of %s returned %s", url, resp.Status)
		return
	}
	log.Successf("App reachable at http://%s/ (%s)", plan.RemoteHost, time.Since(start).Round(time.Millisecond))
}

// Remove tears the site out of both nginx directories and reloads.
// Best-effort: cleanup keeps going even if the site was never installed.
func Remove(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) {
	rm := fmt.Sprintf("sudo rm -f %s %s", remote.Quote(plan.SiteLinkPath()), remote.Quote(plan.SitePath()))
	if res, err := runner.Run(ctx, rm); err != nil || res.ExitCode != 0 {
		log.Warnf("Could not remove site config: %s", diag(res, err))
	} else {
		log.Successf("Site config for %s removed", plan.AppName)
	}

	if res, err := runner.Run(ctx, "sudo systemctl reload nginx"); err != nil || res.ExitCode != 0 {
		log.Warnf("Nginx reload after removal failed: %s", diag(res, err))
	}
}

func diag(res remote.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	return res.Output()
}
