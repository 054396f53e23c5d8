package directive

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hearthd/hearth/internal/home"
)

// Dispatcher applies parsed directives to the device controller.
type Dispatcher struct {
	controller home.Controller
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher over the given controller.
func NewDispatcher(controller home.Controller, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		controller: controller,
		logger:     logger.With("component", "dispatcher"),
	}
}

// Apply executes each directive against its device, in sorted
// device-id order so runs are deterministic. Updates are isolated: a
// failed device yields a success=false result with the reason and the
// batch continues. There is no rollback. An empty map returns an empty
// slice without touching the controller.
func (d *Dispatcher) Apply(ctx context.Context, directives map[string]Directive) []ActionResult {
	if len(directives) == 0 {
		return []ActionResult{}
	}

	ids := make([]string, 0, len(directives))
	for id := range directives {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]ActionResult, 0, len(ids))
	for _, id := range ids {
		dir := directives[id]
		results = append(results, d.applyOne(ctx, id, dir))
	}
	return results
}

func (d *Dispatcher) applyOne(ctx context.Context, id string, dir Directive) ActionResult {
	result := ActionResult{DeviceID: id, Action: dir}

	var status *home.Status
	if dir.Status != nil {
		s, err := home.ParseStatus(*dir.Status)
		if err != nil {
			d.logger.Warn("directive rejected", "device", id, "err", err)
			result.Message = err.Error()
			return result
		}
		status = &s
	}

	device, err := d.controller.Update(ctx, id, status, dir.Properties)
	if err != nil {
		d.logger.Warn("device update failed", "device", id, "err", err)
		result.Message = fmt.Sprintf("update failed: %v", err)
		return result
	}

	d.logger.Info("device updated", "device", id, "status", device.Status)
	result.Success = true
	result.Message = fmt.Sprintf("%s is now %s", device.Name, device.Status)
	return result
}
