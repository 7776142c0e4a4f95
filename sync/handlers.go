package sync

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalantsika/lalantsika_backend/utils"
)

// logTrigger records which account fired a manual sync endpoint. The
// scheduler's passes go through StartScheduler and never hit this.
func (e *Engine) logTrigger(c *gin.Context, action string, entity string) {
	entry := e.logger.WithField("action", action)
	if entity != "" {
		entry = entry.WithField("entity", entity)
	}
	if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
		entry = entry.WithField("user_id", userId)
	}
	entry.Info("manual sync trigger")
}

// TriggerOutboundHandler runs one outbound batch for the entity type
// named in the path.
func (e *Engine) TriggerOutboundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		e.logTrigger(c, "outbound", entity)
		res, err := e.SyncUnsynchronized(c.Request.Context(), entity)
		writeSyncResponse(c, entity, res, err)
	}
}

// ForceResyncHandler resets the synchronized flags of every table and
// pushes everything again. This is the drift recovery hatch; the
// idempotent puts make rerunning it safe.
func (e *Engine) ForceResyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		e.logTrigger(c, "force-resync", "")
		outcomes := e.ForceResyncAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "forced resync completed",
			"data":    outcomes,
		})
	}
}

// TriggerInboundHandler runs one inbound batch for the entity type
// named in the path.
func (e *Engine) TriggerInboundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		e.logTrigger(c, "inbound", entity)
		res, err := e.SyncFromStore(c.Request.Context(), entity)
		writeSyncResponse(c, entity, res, err)
	}
}

// FullInboundHandler pulls every collection, reporting per entity type.
func (e *Engine) FullInboundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		outcomes := map[string]PassOutcome{}
		for _, entity := range AllEntities {
			res, err := e.SyncFromStore(c.Request.Context(), entity)
			if err != nil {
				outcomes[entity] = PassOutcome{Error: err.Error()}
				continue
			}
			in := res
			outcomes[entity] = PassOutcome{Inbound: &in}
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "inbound sync completed",
			"data":    outcomes,
		})
	}
}

// FullPassHandler runs the same convergence pass the scheduler runs.
func (e *Engine) FullPassHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		e.logTrigger(c, "full-pass", "")
		outcomes := e.RunFullPass(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "sync pass completed",
			"data":    outcomes,
		})
	}
}

// RelationalStatusHandler reports how much of each table is exported.
func (e *Engine) RelationalStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    e.RelationalStatus(c.Request.Context()),
		})
	}
}

// StoreStatusHandler reports each collection's import backlog next to
// the relational counts, so one call shows both sides of the drift.
func (e *Engine) StoreStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"store":      e.StoreStatus(c.Request.Context()),
				"relational": e.RelationalStatus(c.Request.Context()),
			},
		})
	}
}

func writeSyncResponse(c *gin.Context, entity string, res Result, err error) {
	switch {
	case errors.Is(err, ErrUnknownEntity):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "unknown entity type: " + entity,
		})
	case errors.Is(err, ErrSyncBusy):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": err.Error(),
		})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "sync completed",
			"data":    res,
		})
	}
}
