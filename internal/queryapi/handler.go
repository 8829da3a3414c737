package queryapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mayhem/fuzzyindex/internal/searchengine"
)

// searchRequest is the wire shape of a searchengine.Request.
type searchRequest struct {
	ArtistIDs     []uint32 `json:"artist_ids" binding:"required,min=1"`
	ArtistName    string   `json:"artist_name"`
	ReleaseName   string   `json:"release_name"`
	RecordingName string   `json:"recording_name" binding:"required"`
}

// searchResponse is the wire shape of a resolved searchengine.Hit.
type searchResponse struct {
	ArtistID    uint32  `json:"artist_id"`
	ReleaseID   uint32  `json:"release_id"`
	RecordingID uint32  `json:"recording_id"`
	Confidence  float64 `json:"confidence"`
}

func searchHandler(engine *searchengine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		hit, err := engine.Search(c.Request.Context(), searchengine.Request{
			ArtistIDs:     req.ArtistIDs,
			ArtistName:    req.ArtistName,
			ReleaseName:   req.ReleaseName,
			RecordingName: req.RecordingName,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if hit == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no match found"})
			return
		}

		c.JSON(http.StatusOK, searchResponse{
			ArtistID:    hit.ArtistID,
			ReleaseID:   hit.ReleaseID,
			RecordingID: hit.RecordingID,
			Confidence:  hit.Confidence,
		})
	}
}
