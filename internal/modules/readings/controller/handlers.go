package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"climalog/internal/aggregate"
	"climalog/internal/modules/readings/types"
	"climalog/internal/utils"
)

func (c *readingsControllerImpl) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReadingBody)
	var p types.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	view, err := c.service.Ingest(r.Context(), p)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, view)
}

func (c *readingsControllerImpl) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := c.service.Recent(r.Context(), limit)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *readingsControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	reading, err := c.service.Latest(r.Context())
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reading)
}

func (c *readingsControllerImpl) handleRange(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRangeQuery(r, c.now())
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := c.service.Range(r.Context(), from, to)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"from":     from,
		"to":       to,
		"readings": readings,
	})
}

// handleHistory always answers with aggregated buckets; raw readings are
// served by handleRange.
func (c *readingsControllerImpl) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := c.service.History(r.Context(), r.URL.Query().Get("range"))
	if errors.Is(err, aggregate.ErrUnknownRange) {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, history)
}

type rangeInfo struct {
	Token         string  `json:"token"`
	Label         string  `json:"label"`
	BucketCount   int     `json:"bucketCount"`
	BucketSeconds float64 `json:"bucketSeconds"`
}

func (c *readingsControllerImpl) handleRanges(w http.ResponseWriter, r *http.Request) {
	ranges := aggregate.Ranges()
	out := make([]rangeInfo, len(ranges))
	for i, rg := range ranges {
		out[i] = rangeInfo{
			Token:         rg.Token,
			Label:         rg.Label,
			BucketCount:   rg.BucketCount(),
			BucketSeconds: rg.Width.Seconds(),
		}
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func (c *readingsControllerImpl) handleForecast(w http.ResponseWriter, r *http.Request) {
	fc, err := c.service.Forecast(r.Context())
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, fc)
}
