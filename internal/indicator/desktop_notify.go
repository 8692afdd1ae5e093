package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type desktop interface {
	Notify(ctx context.Context, replaceID uint32, summary string, timeoutMS int) (uint32, error)
	Dismiss(ctx context.Context, id uint32) error
}

// busctl talks to org.freedesktop.Notifications on the user bus.
type busctl struct {
	appName string
}

var notificationsTarget = []string{
	"--user",
	"call",
	"org.freedesktop.Notifications",
	"/org/freedesktop/Notifications",
	"org.freedesktop.Notifications",
}

// Notify returns the ID the notification server assigned.
func (b busctl) Notify(ctx context.Context, replaceID uint32, summary string, timeoutMS int) (uint32, error) {
	out, err := b.call(ctx, "Notify", "susssasa{sv}i",
		b.appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"",
		summary,
		"",
		"0",
		"0",
		strconv.Itoa(timeoutMS),
	)
	if err != nil {
		return 0, fmt.Errorf("desktop notify: %w", err)
	}
	return parseNotificationID(out)
}

func (b busctl) Dismiss(ctx context.Context, id uint32) error {
	if _, err := b.call(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss: %w", err)
	}
	return nil
}

func (busctl) call(ctx context.Context, method string, signature string, args ...string) (string, error) {
	argv := append(append([]string{}, notificationsTarget...), method, signature)
	argv = append(argv, args...)

	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, trimmed)
	}
	return trimmed, nil
}

// parseNotificationID reads busctl's "u 42" reply.
func parseNotificationID(out string) (uint32, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}
