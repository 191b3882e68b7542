package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/amanice/storefront/internal/webserver"
)

// registerSchedulerRoutes registers the background job routes
func registerSchedulerRoutes() {
	webserver.AdminGET("/jobs", ListJobs)
	webserver.AdminPOST("/jobs/:name/run", TriggerJob)
}

// ListJobs returns the scheduled tasks with their last and next run
func ListJobs(c echo.Context) error {
	return ok(c, GetAppContext(c).Jobs())
}

// TriggerJob runs a task immediately
func TriggerJob(c echo.Context) error {
	name := strings.TrimSpace(c.Param("name"))
	appCtx := GetAppContext(c)
	known := false
	for _, job := range appCtx.Jobs() {
		if job.Name == name {
			known = true
			break
		}
	}
	if !known {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	}
	if err := appCtx.RunJobNow(name); err != nil {
		return fail(c, http.StatusInternalServerError, "RUN_FAILED", "Failed to run job", err.Error())
	}
	logOperation(c, "run_job", "ran job "+name)
	return c.NoContent(http.StatusNoContent)
}
