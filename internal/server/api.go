// Package server exposes the playback session over a local HTTP control API.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lvasseur/shelftunes/internal/playback"
	"github.com/lvasseur/shelftunes/internal/settings"
	"github.com/lvasseur/shelftunes/internal/track"
)

// LastfmAuthenticator is the slice of the Last.fm client the auth
// endpoints drive. Satisfied by *lastfm.Client; faked in tests.
type LastfmAuthenticator interface {
	GetToken() (string, error)
	GetAuthURL(token string) string
	GetSession(token string) (string, error)
}

// API handles HTTP control endpoints.
type API struct {
	arbiter *playback.Arbiter
	store   *settings.Store
	lastfm  LastfmAuthenticator // nil when Last.fm is not configured
	log     *slog.Logger
}

// NewAPI creates a new API handler.
func NewAPI(arbiter *playback.Arbiter, store *settings.Store, lastfm LastfmAuthenticator, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{arbiter: arbiter, store: store, lastfm: lastfm, log: log}
}

// StatusResponse is the response for the status endpoint.
type StatusResponse struct {
	ActiveBackend     string  `json:"activeBackend"`
	ActiveEntityID    string  `json:"activeEntityId,omitempty"`
	Volume            float64 `json:"volume"`
	CrossfadeInFlight bool    `json:"crossfadeInFlight"`
}

// VolumeRequest is the request body for the volume endpoint.
type VolumeRequest struct {
	Volume *float64 `json:"volume" binding:"required"`
}

// BackendRequest is the request body for the backend switch endpoint.
type BackendRequest struct {
	Backend string `json:"backend" binding:"required"`
}

// ShuffleResponse is the response for the shuffle toggle endpoint.
type ShuffleResponse struct {
	EntityID       string `json:"entityId"`
	ShuffleEnabled bool   `json:"shuffleEnabled"`
}

// CredentialRequest is the request body for storing a backend credential.
type CredentialRequest struct {
	Token    string `json:"token"`
	APIKey   string `json:"apiKey"`
	DeviceID string `json:"deviceId"`
}

// LastfmAuthResponse carries a fresh auth token and the URL the user opens
// to authorize it.
type LastfmAuthResponse struct {
	Token   string `json:"token"`
	AuthURL string `json:"authUrl"`
}

// LastfmSessionRequest is the request body for exchanging an authorized
// token for a session key.
type LastfmSessionRequest struct {
	Token string `json:"token" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Status reports the current playback session.
func (a *API) Status(c *gin.Context) {
	s := a.arbiter.Session()
	c.JSON(http.StatusOK, StatusResponse{
		ActiveBackend:     s.ActiveBackend.String(),
		ActiveEntityID:    s.ActiveEntityID,
		Volume:            s.Volume,
		CrossfadeInFlight: s.CrossfadeInFlight,
	})
}

// Play starts playback for an entity.
func (a *API) Play(c *gin.Context) {
	entityID := c.Param("id")
	a.arbiter.PlayMusicFor(entityID)
	c.Status(http.StatusAccepted)
}

// Stop silences all backends.
func (a *API) Stop(c *gin.Context) {
	a.arbiter.StopAll()
	c.Status(http.StatusNoContent)
}

// Next skips to the next track.
func (a *API) Next(c *gin.Context) {
	a.arbiter.SkipNext()
	c.Status(http.StatusNoContent)
}

// Previous skips to the previous track.
func (a *API) Previous(c *gin.Context) {
	a.arbiter.SkipPrevious()
	c.Status(http.StatusNoContent)
}

// Volume sets the session volume and persists it.
func (a *API) Volume(c *gin.Context) {
	var req VolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "volume is required"})
		return
	}
	v := *req.Volume
	if v < 0 || v > 1 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "volume must be between 0 and 1"})
		return
	}

	a.arbiter.SetVolume(v)

	sett, err := a.store.Settings()
	if err == nil {
		sett.Volume = v
		err = a.store.SaveSettings(sett)
	}
	if err != nil {
		a.log.Warn("persisting volume failed", "error", err)
	}
	c.Status(http.StatusNoContent)
}

// Shuffle toggles shuffle mode for an entity.
func (a *API) Shuffle(c *gin.Context) {
	entityID := c.Param("id")
	enabled := a.arbiter.ToggleShuffle(entityID)
	c.JSON(http.StatusOK, ShuffleResponse{EntityID: entityID, ShuffleEnabled: enabled})
}

// Backend switches the active backend.
func (a *API) Backend(c *gin.Context) {
	var req BackendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "backend is required"})
		return
	}
	kind, ok := track.ParseSource(req.Backend)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown backend: " + req.Backend})
		return
	}
	a.arbiter.SwitchBackend(kind)
	c.Status(http.StatusNoContent)
}

// GetSettings returns the persisted playback settings.
func (a *API) GetSettings(c *gin.Context) {
	sett, err := a.store.Settings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, sett)
}

// PutSettings replaces the persisted playback settings.
func (a *API) PutSettings(c *gin.Context) {
	var sett settings.Settings
	if err := c.ShouldBindJSON(&sett); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid settings payload"})
		return
	}
	if sett.Volume < 0 || sett.Volume > 1 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "volume must be between 0 and 1"})
		return
	}
	if err := a.store.SaveSettings(sett); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// PutCredential stores a backend credential.
func (a *API) PutCredential(c *gin.Context) {
	kind, ok := track.ParseSource(c.Param("provider"))
	if !ok || (kind != track.SourceVideoPlatform && kind != track.SourceStreamingService) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown provider"})
		return
	}

	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid credential payload"})
		return
	}
	if req.Token == "" && req.APIKey == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "token or apiKey is required"})
		return
	}

	cred := settings.Credential{
		Provider: kind,
		Token:    req.Token,
		APIKey:   req.APIKey,
		DeviceID: req.DeviceID,
	}
	if err := a.store.SaveCredential(cred); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// LastfmAuth starts the Last.fm desktop authorization flow: the caller
// opens the returned URL, authorizes the token, then exchanges it via
// LastfmSession.
func (a *API) LastfmAuth(c *gin.Context) {
	if a.lastfm == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "last.fm is not configured"})
		return
	}
	token, err := a.lastfm.GetToken()
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, LastfmAuthResponse{
		Token:   token,
		AuthURL: a.lastfm.GetAuthURL(token),
	})
}

// LastfmSession exchanges an authorized token for a session key and
// persists it in the settings. Scrobbling picks the key up on the next
// start.
func (a *API) LastfmSession(c *gin.Context) {
	if a.lastfm == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "last.fm is not configured"})
		return
	}
	var req LastfmSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "token is required"})
		return
	}

	key, err := a.lastfm.GetSession(req.Token)
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	sett, err := a.store.Settings()
	if err == nil {
		sett.APIKey = key
		err = a.store.SaveSettings(sett)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	a.log.Info("last.fm session stored")
	c.Status(http.StatusNoContent)
}

// DeleteCredential removes a backend credential.
func (a *API) DeleteCredential(c *gin.Context) {
	kind, ok := track.ParseSource(c.Param("provider"))
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown provider"})
		return
	}
	if err := a.store.DeleteCredential(kind); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
