package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GET /time-slots/available?cursor=&pageSize=
func (a *App) ListAvailableSlotsHandler(c *gin.Context) {
	pageSize := 0
	if raw := c.Query("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			a.fail(c, invalid(errors.New("pageSize must be an integer")))
			return
		}
		pageSize = n
	}

	page, err := a.Slots.List(c.Request.Context(), c.Query("cursor"), pageSize)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.Metrics.AddListed(len(page.Items))

	a.ok(c, http.StatusOK, "Available time slots", slotPageResp{
		TimeSlots:   page.Items,
		NextCursor:  page.NextCursor,
		HasNextPage: page.HasMore,
		PageSize:    page.PageSize,
	})
}
