package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/helpers"
	"github.com/spektr-org/flightquery/pkg/response"
	"github.com/spektr-org/flightquery/session"
)

// DefaultMaxDatasetBytes bounds an uploaded CSV body.
const DefaultMaxDatasetBytes = 64 << 20

// DatasetHandler handles dataset upload and the registry description.
type DatasetHandler struct {
	manager  *session.Manager
	maxBytes int64
}

// NewDatasetHandler creates a new dataset handler. maxBytes <= 0 means
// DefaultMaxDatasetBytes.
func NewDatasetHandler(manager *session.Manager, maxBytes int64) *DatasetHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDatasetBytes
	}
	return &DatasetHandler{manager: manager, maxBytes: maxBytes}
}

// datasetInfo describes the loaded dataset.
type datasetInfo struct {
	Header  []string       `json:"header"`
	Records int            `json:"records"`
	Dropped int            `json:"dropped"`
	Extents engine.Extents `json:"extents"`
}

func describe(ds *helpers.Dataset) *datasetInfo {
	if ds == nil {
		return nil
	}
	return &datasetInfo{
		Header:  ds.Header,
		Records: len(ds.Records),
		Dropped: ds.Dropped,
		Extents: engine.ComputeExtents(ds.View()),
	}
}

// PutDataset handles PUT /api/v1/dataset with a CSV body.
// Sessions keep their filters and read the new records from then on.
func (h *DatasetHandler) PutDataset(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	ds, err := helpers.ReadCSV(body, h.manager.Registry())
	if err != nil {
		code, _ := statusFor(err)
		if code == http.StatusInternalServerError {
			code = http.StatusBadRequest
		}
		response.Error(c, code, "Failed to read dataset", err)
		return
	}
	h.manager.SetDataset(ds)
	response.Success(c, describe(ds))
}

// GetRegistry handles GET /api/v1/registry: the dimensions, columns and
// regions in effect, plus the extents of the loaded dataset if any.
func (h *DatasetHandler) GetRegistry(c *gin.Context) {
	response.Success(c, gin.H{
		"registry": h.manager.Registry(),
		"dataset":  describe(h.manager.Dataset()),
	})
}
