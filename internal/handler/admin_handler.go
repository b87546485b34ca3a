package handler

import (
	"errors"
	"fmt"
	"net/http"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/internal/repository"
	"quiz-bot-go/internal/service"
	"quiz-bot-go/pkg/es"
	"quiz-bot-go/pkg/log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// AdminHandler 负责处理后台报表与导出相关的 API 请求。
type AdminHandler struct {
	reportService service.ReportService
	exportService service.ExportService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(reportService service.ReportService, exportService service.ExportService) *AdminHandler {
	return &AdminHandler{
		reportService: reportService,
		exportService: exportService,
	}
}

// GetStats 返回问卷统计数据。
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.reportService.Stats(c.Request.Context())
	if err != nil {
		log.Error("GetStats: Failed to compute stats", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取统计数据失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": stats})
}

// ListSessions 处理分页获取会话列表的请求，page 从 0 开始。
func (h *AdminHandler) ListSessions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	status := model.SessionStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的会话状态", "data": nil})
		return
	}

	list, err := h.reportService.ListSessions(c.Request.Context(), status, page, size)
	if err != nil {
		log.Error("ListSessions: Failed to list sessions", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取会话列表失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": list})
}

// GetSession 返回单个会话的详情。
func (h *AdminHandler) GetSession(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的会话 ID", "data": nil})
		return
	}

	detail, err := h.reportService.GetSession(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在", "data": nil})
			return
		}
		log.Error("GetSession: Failed to load session", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取会话详情失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": detail})
}

// ListResponses 分页返回作答记录，可按 sessionId 过滤。
func (h *AdminHandler) ListResponses(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	sessionID, ok := optionalID(c, "sessionId")
	if !ok {
		return
	}

	responses, total, err := h.reportService.ListResponses(c.Request.Context(), sessionID, page, size)
	if err != nil {
		log.Error("ListResponses: Failed to list responses", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取作答记录失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"content": responses, "totalElements": total}})
}

// ListRecommendations 分页返回推荐结果。
func (h *AdminHandler) ListRecommendations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	recs, total, err := h.reportService.ListRecommendations(c.Request.Context(), page, size)
	if err != nil {
		log.Error("ListRecommendations: Failed to list recommendations", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取推荐结果失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"content": recs, "totalElements": total}})
}

// ListEvents 按事件类型、会话和日期范围查询分析事件。
func (h *AdminHandler) ListEvents(c *gin.Context) {
	sessionID, ok := optionalID(c, "sessionId")
	if !ok {
		return
	}
	startDate, endDate, ok := dateRange(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := h.reportService.ListEvents(c.Request.Context(), repository.EventFilter{
		EventType: c.Query("type"),
		SessionID: sessionID,
		StartDate: startDate,
		EndDate:   endDate,
		Limit:     limit,
	})
	if err != nil {
		log.Error("ListEvents: Failed to list events", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取事件失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": events})
}

// SearchEvents 在 Elasticsearch 中检索分析事件。
func (h *AdminHandler) SearchEvents(c *gin.Context) {
	sessionID, ok := optionalID(c, "sessionId")
	if !ok {
		return
	}
	startDate, endDate, ok := dateRange(c)
	if !ok {
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	docs, total, err := h.reportService.SearchEvents(c.Request.Context(), es.SearchQuery{
		Text:      c.Query("q"),
		EventType: c.Query("type"),
		SessionID: sessionID,
		From:      startDate,
		To:        endDate,
		Size:      size,
	})
	if err != nil {
		if errors.Is(err, service.ErrSearchDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "事件检索未启用", "data": nil})
			return
		}
		log.Error("SearchEvents: Failed to search events", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "事件检索失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"content": docs, "totalElements": total}})
}

// Export 以附件形式直接下载全部问卷数据，format 取值 csv（默认）或 json。
func (h *AdminHandler) Export(c *gin.Context) {
	format := exportFormat(c)
	filename := fmt.Sprintf("quiz-data-%s.%s", time.Now().Format("20060102-150405"), format)

	var err error
	switch format {
	case service.ExportFormatCSV:
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		err = h.exportService.WriteCSV(c.Request.Context(), c.Writer)
	case service.ExportFormatJSON:
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		err = h.exportService.WriteJSON(c.Request.Context(), c.Writer)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "不支持的导出格式", "data": nil})
		return
	}
	if err != nil {
		// 响应头可能已经发出，只能记录日志。
		log.Error("Export: Failed to write export", err)
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "导出失败", "data": nil})
		}
	}
}

// PublishExport 生成导出文件并上传到对象存储，返回临时下载地址。
func (h *AdminHandler) PublishExport(c *gin.Context) {
	format := exportFormat(c)

	published, err := h.exportService.Publish(c.Request.Context(), format)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFormat):
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "不支持的导出格式", "data": nil})
		case errors.Is(err, service.ErrStorageDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "对象存储未启用", "data": nil})
		default:
			log.Error("PublishExport: Failed to publish export", err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "发布导出文件失败", "data": nil})
		}
		return
	}
	log.Infof("Export published to %s", published.ObjectName)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": published})
}

// exportFormat 优先取路径参数 format，其次取同名查询参数，默认 csv。
func exportFormat(c *gin.Context) string {
	if f := c.Param("format"); f != "" {
		return f
	}
	return c.DefaultQuery("format", service.ExportFormatCSV)
}

// optionalID 解析可选的数字查询参数，格式错误时写入 400 并返回 false。
func optionalID(c *gin.Context, key string) (uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Invalid " + key + " format", "data": nil})
		return 0, false
	}
	return uint(id), true
}

// dateRange 解析 start_date 和 end_date（YYYY-MM-DD），end_date 包含当天。
func dateRange(c *gin.Context) (start, end *time.Time, ok bool) {
	if s := c.Query("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Invalid start_date format, use YYYY-MM-DD", "data": nil})
			return nil, nil, false
		}
		start = &t
	}
	if s := c.Query("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Invalid end_date format, use YYYY-MM-DD", "data": nil})
			return nil, nil, false
		}
		t = t.Add(24*time.Hour - time.Second)
		end = &t
	}
	return start, end, true
}
