package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tvms/managers"
	"tvms/models"
	"tvms/pkg/metrics"
	"tvms/pkg/validate"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const maxEvidenceSize = 5 * 1024 * 1024

// app wires the managers to the HTTP surface. Everything is constructor
// injected so tests can stand one up over their own DB handle.
type app struct {
	db         *gorm.DB
	jwtSecret  []byte
	uploadBase string
	users      *managers.UserManager
	violations *managers.ViolationManager
	payments   *managers.PaymentManager
	analytics  *managers.AnalyticsEngine
	metrics    *metrics.Metrics
}

func newApp(db *gorm.DB, jwtSecret []byte, m *metrics.Metrics) *app {
	uploadBase := os.Getenv("UPLOAD_BASE")
	if uploadBase == "" {
		uploadBase = "uploads"
	}
	return &app{
		db:         db,
		jwtSecret:  jwtSecret,
		uploadBase: uploadBase,
		users:      managers.NewUserManager(db),
		violations: managers.NewViolationManager(db),
		payments:   managers.NewPaymentManager(db),
		analytics:  managers.NewAnalyticsEngine(db),
		metrics:    m,
	}
}

func (a *app) setupRoutes(r *gin.Engine) {
	r.POST("/register", a.registerHandler)
	r.POST("/login", a.loginHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(a.jwtAuthMiddleware())
	api.GET("/me", a.meHandler)

	api.GET("/violations", a.listViolationsHandler)
	api.GET("/violations/search", a.searchViolationsHandler)
	api.GET("/violations/:id", a.getViolationHandler)
	api.POST("/violations", requireRole(models.RoleOfficer, models.RoleAdmin), a.createViolationHandler)
	api.PUT("/violations/:id/status", requireRole(models.RoleOfficer, models.RoleAdmin), a.updateStatusHandler)
	api.GET("/violations/:id/payment", a.paymentForViolationHandler)
	api.GET("/violations/:id/evidence", a.listEvidenceHandler)
	api.POST("/violations/:id/evidence", requireRole(models.RoleOfficer, models.RoleAdmin), a.uploadEvidenceHandler)

	api.GET("/violation-types", a.violationTypesHandler)
	api.GET("/areas", a.areasHandler)

	api.POST("/payments", a.processPaymentHandler)
	api.GET("/payments", requireRole(models.RoleOfficer, models.RoleAdmin), a.listPaymentsHandler)
	api.GET("/payments/recent", requireRole(models.RoleOfficer, models.RoleAdmin), a.recentPaymentsHandler)
	api.GET("/payments/by-method/:method", requireRole(models.RoleOfficer, models.RoleAdmin), a.paymentsByMethodHandler)
	api.GET("/payments/history", a.paymentHistoryHandler)
	api.GET("/payments/verify/:txn", a.verifyTransactionHandler)
	api.DELETE("/payments/:id", requireRole(models.RoleAdmin), a.refundPaymentHandler)

	api.GET("/stats", a.statsHandler)

	api.GET("/users", requireRole(models.RoleAdmin), a.listUsersHandler)
	api.GET("/users/search", requireRole(models.RoleAdmin), a.searchUsersHandler)
	api.GET("/users/officers", requireRole(models.RoleAdmin), a.listOfficersHandler)
	api.GET("/users/counts", requireRole(models.RoleAdmin), a.userCountsHandler)
	api.PUT("/users/:id", a.updateUserHandler)
	api.PUT("/users/:id/password", a.changePasswordHandler)
	api.DELETE("/users/:id", requireRole(models.RoleAdmin), a.deleteUserHandler)

	analytics := api.Group("/analytics")
	analytics.Use(requireRole(models.RoleAdmin))
	analytics.GET("/summary", a.analyticsSummaryHandler)
	analytics.GET("/by-area", a.analyticsByAreaHandler)
	analytics.GET("/by-type", a.analyticsByTypeHandler)
	analytics.GET("/trends", a.analyticsTrendsHandler)
	analytics.GET("/daily", a.dailyViolationsHandler)
	analytics.GET("/peak-hours", a.peakHoursHandler)
	analytics.GET("/collections/daily", a.dailyCollectionsHandler)
	analytics.GET("/collections/monthly", a.monthlyCollectionsHandler)
	analytics.GET("/collection-efficiency", a.collectionEfficiencyHandler)
	analytics.GET("/top-violators", a.topViolatorsHandler)
	analytics.GET("/officer-performance", a.officerPerformanceHandler)
	analytics.GET("/methods", a.methodDistributionHandler)
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// fail maps a manager error to the HTTP taxonomy: validation 400, bad
// credentials 401, absent row 404, conflict 409, anything else a 500 with
// the detail kept server-side.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case validate.Is(err) || errors.Is(err, managers.ErrNothingToUpdate):
		status = http.StatusBadRequest
	case errors.Is(err, managers.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case managers.IsNotFound(err):
		status = http.StatusNotFound
	case managers.IsConflict(err):
		status = http.StatusConflict
	default:
		log.Printf("internal error: %v", err)
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (a *app) registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"full_name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Phone    string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	// Self-registration always creates a citizen; officers and admins are
	// provisioned by an admin.
	user, err := a.users.Create(managers.NewUser{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Role:     models.RoleCitizen,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user)
}

func (a *app) loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	user, err := a.users.Authenticate(req.Username, req.Password)
	if err != nil {
		a.metrics.AuthFailures.Inc()
		fail(c, err)
		return
	}
	token, err := a.issueToken(user.ID, user.Username, user.Role)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"token": token, "user": user})
}

func (a *app) meHandler(c *gin.Context) {
	user, err := a.users.GetByID(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user)
}

// listViolationsHandler returns all violations for staff, and only the
// caller's own for citizens.
func (a *app) listViolationsHandler(c *gin.Context) {
	if c.GetString("role") == models.RoleCitizen {
		userID := currentUserID(c)
		items, err := a.violations.ByUser(userID)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, items)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := a.violations.ListDetailed(limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (a *app) getViolationHandler(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	v, err := a.violations.GetByID(id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

func (a *app) createViolationHandler(c *gin.Context) {
	var req struct {
		VehicleNumber string `json:"vehicle_number" binding:"required"`
		UserID        *uint  `json:"user_id"`
		TypeID        uint   `json:"type_id" binding:"required"`
		AreaID        uint   `json:"area_id" binding:"required"`
		ViolationDate string `json:"violation_date"`
		// pointer so an explicit zero fine binds; required on a plain
		// float64 would reject it
		FineAmount *float64 `json:"fine_amount" binding:"required"`
		Notes      string   `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	v := models.Violation{
		VehicleNumber: req.VehicleNumber,
		UserID:        req.UserID,
		TypeID:        req.TypeID,
		AreaID:        req.AreaID,
		OfficerID:     currentUserID(c),
		FineAmount:    *req.FineAmount,
		Status:        models.StatusUnpaid,
		Notes:         req.Notes,
	}
	if req.ViolationDate != "" {
		t, err := time.Parse(time.RFC3339, req.ViolationDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "violation_date must be RFC3339"})
			return
		}
		v.ViolationDate = t
	}
	id, err := a.violations.Create(&v)
	if err != nil {
		fail(c, err)
		return
	}
	a.metrics.ViolationsCreated.Inc()
	ok(c, gin.H{"violation_id": id})
}

func (a *app) updateStatusHandler(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err := a.violations.UpdateStatus(id, req.Status); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"violation_id": id, "status": req.Status})
}

func (a *app) searchViolationsHandler(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "search term required"})
		return
	}
	items, err := a.violations.Search(term)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (a *app) violationTypesHandler(c *gin.Context) {
	types, err := a.violations.Types()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, types)
}

func (a *app) areasHandler(c *gin.Context) {
	areas, err := a.violations.Areas()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, areas)
}

func (a *app) processPaymentHandler(c *gin.Context) {
	var req struct {
		ViolationID uint     `json:"violation_id" binding:"required"`
		Amount      *float64 `json:"amount" binding:"required"`
		Method      string   `json:"method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	p, err := a.payments.Process(req.ViolationID, *req.Amount, req.Method)
	if err != nil {
		fail(c, err)
		return
	}
	a.metrics.PaymentsProcessed.Inc()
	ok(c, p)
}

func (a *app) listPaymentsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := a.payments.ListDetailed(limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (a *app) recentPaymentsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := a.payments.Recent(limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (a *app) verifyTransactionHandler(c *gin.Context) {
	detail, err := a.payments.VerifyTransaction(c.Param("txn"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, detail)
}

func (a *app) refundPaymentHandler(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	if err := a.payments.Refund(id); err != nil {
		fail(c, err)
		return
	}
	a.metrics.PaymentsRefunded.Inc()
	ok(c, gin.H{"payment_id": id, "refunded": true})
}

// statsHandler scopes the fine totals to the caller for citizens, global for
// staff.
func (a *app) statsHandler(c *gin.Context) {
	var userID *uint
	if c.GetString("role") == models.RoleCitizen {
		id := currentUserID(c)
		userID = &id
	}
	totals, err := a.violations.TotalFines(userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, totals)
}

func (a *app) listUsersHandler(c *gin.Context) {
	users, err := a.users.List(c.Query("role"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, users)
}

// updateUserHandler lets an account holder edit their own profile, and an
// admin edit anyone's.
func (a *app) updateUserHandler(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	if c.GetString("role") != models.RoleAdmin && id != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "forbidden"})
		return
	}
	var req struct {
		FullName *string `json:"full_name"`
		Email    *string `json:"email"`
		Phone    *string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	upd := managers.ProfileUpdate{FullName: req.FullName, Email: req.Email, Phone: req.Phone}
	if err := a.users.UpdateProfile(id, upd); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"user_id": id})
}

func (a *app) deleteUserHandler(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	if err := a.users.Delete(id); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"user_id": id, "deleted": true})
}

func (a *app) listEvidenceHandler(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	if _, err := a.violations.GetByID(id); err != nil {
		fail(c, err)
		return
	}
	var items []models.Evidence
	if err := a.db.Where("violation_id = ?", id).Order("id").Find(&items).Error; err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

// uploadEvidenceHandler stores an evidence photo for a violation and writes a
// 320px thumbnail next to it. Re-uploading the same file name returns the
// existing record.
func (a *app) uploadEvidenceHandler(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	if _, err := a.violations.GetByID(id); err != nil {
		fail(c, err)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "file missing"})
		return
	}
	if file.Size > maxEvidenceSize {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "file too large (max 5MB)"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "only png/jpg/jpeg allowed"})
		return
	}

	var existing models.Evidence
	if err := a.db.Where("violation_id = ? AND file_name = ?", id, file.Filename).First(&existing).Error; err == nil {
		ok(c, existing)
		return
	}

	dir := filepath.Join(a.uploadBase, "violations", strconv.FormatUint(uint64(id), 10))
	if err := os.MkdirAll(dir, 0755); err != nil {
		fail(c, err)
		return
	}
	fullPath := filepath.Join(dir, file.Filename)
	if err := c.SaveUploadedFile(file, fullPath); err != nil {
		fail(c, err)
		return
	}

	// Thumbnails are best-effort: a corrupt image still gets its original
	// stored.
	thumbPath := ""
	if img, err := imaging.Open(fullPath); err == nil {
		thumb := imaging.Fit(img, 320, 320, imaging.Lanczos)
		tp := strings.TrimSuffix(fullPath, ext) + ".thumb.jpg"
		if err := imaging.Save(thumb, tp); err == nil {
			thumbPath = tp
		} else {
			log.Printf("thumbnail save failed for %s: %v", fullPath, err)
		}
	} else {
		log.Printf("thumbnail decode failed for %s: %v", fullPath, err)
	}

	ev := models.Evidence{
		ViolationID: id,
		FileName:    file.Filename,
		StorePath:   fullPath,
		ThumbPath:   thumbPath,
		ContentType: file.Header.Get("Content-Type"),
		UploadedBy:  currentUserID(c),
	}
	if err := a.db.Create(&ev).Error; err != nil {
		fail(c, err)
		return
	}
	ok(c, ev)
}

func (a *app) analyticsSummaryHandler(c *gin.Context) {
	report, err := a.analytics.GenerateSummaryReport()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}

func (a *app) analyticsByAreaHandler(c *gin.Context) {
	data, err := a.analytics.ByArea()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

func (a *app) analyticsByTypeHandler(c *gin.Context) {
	data, err := a.analytics.ByType()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

func (a *app) analyticsTrendsHandler(c *gin.Context) {
	months, _ := strconv.Atoi(c.DefaultQuery("months", "12"))
	data, err := a.analytics.MonthlyTrends(months)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

func (a *app) collectionEfficiencyHandler(c *gin.Context) {
	data, err := a.analytics.GetCollectionEfficiency()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

func (a *app) topViolatorsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	data, err := a.analytics.TopViolators(limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

func (a *app) officerPerformanceHandler(c *gin.Context) {
	data, err := a.analytics.OfficerPerformance()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

func (a *app) methodDistributionHandler(c *gin.Context) {
	data, err := a.payments.MethodDistribution()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

// changePasswordHandler lets an account holder (or an admin) set a new
// password. The old one is not re-verified; possession of a valid token is
// the gate, matching the login session model.
func (a *app) changePasswordHandler(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	if c.GetString("role") != models.RoleAdmin && id != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "forbidden"})
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err := a.users.UpdatePassword(id, req.Password); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"user_id": id})
}

// paymentHistoryHandler returns the caller's own receipts.
func (a *app) paymentHistoryHandler(c *gin.Context) {
	items, err := a.payments.HistoryForUser(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (a *app) paymentForViolationHandler(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	p, err := a.payments.ByViolation(id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

func (a *app) paymentsByMethodHandler(c *gin.Context) {
	method := c.Param("method")
	if err := validate.PaymentMethod(method); err != nil {
		fail(c, err)
		return
	}
	items, err := a.payments.ByMethod(method)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (a *app) searchUsersHandler(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "search term required"})
		return
	}
	users, err := a.users.Search(term)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, users)
}

func (a *app) listOfficersHandler(c *gin.Context) {
	users, err := a.users.Officers()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, users)
}

func (a *app) userCountsHandler(c *gin.Context) {
	counts, err := a.users.CountByRole()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, counts)
}

func (a *app) dailyViolationsHandler(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	data, err := a.analytics.DailyViolations(days)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

func (a *app) peakHoursHandler(c *gin.Context) {
	data, err := a.analytics.PeakHours()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

func (a *app) dailyCollectionsHandler(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	data, err := a.payments.DailyCollections(days)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

func (a *app) monthlyCollectionsHandler(c *gin.Context) {
	months, _ := strconv.Atoi(c.DefaultQuery("months", "12"))
	data, err := a.payments.MonthlyCollections(months)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}
