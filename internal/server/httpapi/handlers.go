package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type deviceTokenRequest struct {
	DeviceToken string `json:"device_token" binding:"required"`
}

type deviceAccessTokenResponse struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	client, err := s.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "client registered", "client_uid", client.UID)
	c.JSON(http.StatusCreated, gin.H{"uid": client.UID, "email": client.Email})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	pair, err := s.auth.AuthorizeByEmail(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	pair, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleLogout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	if err := s.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAuthorizeDevice(c *gin.Context) {
	var req deviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	token, err := s.deviceAuth.AuthorizeDevice(c.Request.Context(), req.DeviceToken)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, deviceAccessTokenResponse{Token: token.Signature, Expires: token.Expires})
}

func (s *Server) handleRefreshDeviceAccess(c *gin.Context) {
	var req deviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	token, err := s.deviceAuth.RefreshDeviceAccessToken(c.Request.Context(), req.DeviceToken)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, deviceAccessTokenResponse{Token: token.Signature, Expires: token.Expires})
}

type createDeviceRequest struct {
	Name string `json:"name" binding:"required"`
}

type deviceResponse struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toDeviceResponse(d *models.Device) deviceResponse {
	return deviceResponse{UID: d.UID, Name: d.Name, CreatedAt: d.CreatedAt}
}

func (s *Server) handleCreateDevice(c *gin.Context) {
	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	device, err := s.devices.Create(c.Request.Context(), clientUID(c), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDeviceResponse(device))
}

func (s *Server) handleListDevices(c *gin.Context) {
	devices, err := s.devices.List(c.Request.Context(), clientUID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceResponse(d))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetDevice(c *gin.Context) {
	device, err := s.devices.Get(c.Request.Context(), clientUID(c), c.Param("uid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDeviceResponse(device))
}

func (s *Server) handleDeleteDevice(c *gin.Context) {
	if err := s.devices.Delete(c.Request.Context(), clientUID(c), c.Param("uid")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleIssueDeviceToken(c *gin.Context) {
	token, err := s.devices.IssueToken(c.Request.Context(), clientUID(c), c.Param("uid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token.Signature, "expires": token.Expires})
}

func (s *Server) handleRevokeDeviceToken(c *gin.Context) {
	if err := s.devices.RevokeToken(c.Request.Context(), clientUID(c), c.Param("uid")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createBufferRequest struct {
	Name      string `json:"name" binding:"required"`
	DeviceUID string `json:"device_uid"`
}

type bufferResponse struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	DeviceUID string    `json:"device_uid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toBufferResponse(b *models.Buffer) bufferResponse {
	return bufferResponse{UID: b.UID, Name: b.Name, DeviceUID: b.DeviceUID, CreatedAt: b.CreatedAt}
}

func (s *Server) handleCreateBuffer(c *gin.Context) {
	var req createBufferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	buffer, err := s.buffers.Create(c.Request.Context(), clientUID(c), req.Name, req.DeviceUID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBufferResponse(buffer))
}

func (s *Server) handleListBuffers(c *gin.Context) {
	buffers, err := s.buffers.List(c.Request.Context(), clientUID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]bufferResponse, 0, len(buffers))
	for _, b := range buffers {
		out = append(out, toBufferResponse(b))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetBuffer(c *gin.Context) {
	buffer, err := s.buffers.Get(c.Request.Context(), clientUID(c), c.Param("uid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBufferResponse(buffer))
}

func (s *Server) handleDeleteBuffer(c *gin.Context) {
	if err := s.buffers.Delete(c.Request.Context(), clientUID(c), c.Param("uid")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type schemeRequest struct {
	Name        string              `json:"name" binding:"required"`
	UsedBuffers []string            `json:"used_buffers"`
	Transitions map[string][]string `json:"transitions"`
}

type schemeResponse struct {
	UID         string              `json:"uid"`
	Name        string              `json:"name"`
	UsedBuffers []string            `json:"used_buffers"`
	Transitions map[string][]string `json:"transitions"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toSchemeResponse(sc *models.ConnectionScheme) schemeResponse {
	return schemeResponse{
		UID:         sc.UID,
		Name:        sc.Name,
		UsedBuffers: sc.UsedBuffers,
		Transitions: sc.Transitions,
		CreatedAt:   sc.CreatedAt,
	}
}

func (s *Server) handleCreateScheme(c *gin.Context) {
	var req schemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	scheme, err := s.schemes.Create(c.Request.Context(), clientUID(c), req.Name, req.UsedBuffers, req.Transitions)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSchemeResponse(scheme))
}

func (s *Server) handleListSchemes(c *gin.Context) {
	schemes, err := s.schemes.List(c.Request.Context(), clientUID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]schemeResponse, 0, len(schemes))
	for _, sc := range schemes {
		out = append(out, toSchemeResponse(sc))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetScheme(c *gin.Context) {
	scheme, err := s.schemes.Get(c.Request.Context(), clientUID(c), c.Param("uid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSchemeResponse(scheme))
}

func (s *Server) handleUpdateScheme(c *gin.Context) {
	var req schemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	scheme, err := s.schemes.Update(c.Request.Context(), clientUID(c), c.Param("uid"), req.Name, req.UsedBuffers, req.Transitions)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSchemeResponse(scheme))
}

func (s *Server) handleDeleteScheme(c *gin.Context) {
	if err := s.schemes.Delete(c.Request.Context(), clientUID(c), c.Param("uid")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	roles := make(gin.H, len(s.healthRoles))
	for _, role := range s.healthRoles {
		if s.health == nil {
			break
		}
		if err := s.health.CheckHealth(ctx, role); err != nil {
			roles[role] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		roles[role] = "ok"
	}

	body := gin.H{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(roles) > 0 {
		body["services"] = roles
	}
	c.JSON(status, body)
}
