/*
Package server exposes the poster editor's recognition pipeline over HTTP:
image upload and history, batch price recognition, and the diagnostics and
notification surfaces the UI polls.
*/
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"poster-editor/src/pkg/batch"
	"poster-editor/src/pkg/email"
	"poster-editor/src/pkg/notify"
	"poster-editor/src/pkg/ocr"
	"poster-editor/src/pkg/panel"
	"poster-editor/src/pkg/storage"
)

type Server struct {
	store     *storage.Store
	gateway   *ocr.Gateway
	scheduler *batch.Scheduler
	panels    *panel.Registry
	feed      *notify.Feed
	emailCfg  email.Config
}

func New(store *storage.Store, gateway *ocr.Gateway, scheduler *batch.Scheduler, panels *panel.Registry, feed *notify.Feed, emailCfg email.Config) *Server {
	return &Server{
		store:     store,
		gateway:   gateway,
		scheduler: scheduler,
		panels:    panels,
		feed:      feed,
		emailCfg:  emailCfg,
	}
}

func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/images", s.uploadImage)
	e.GET("/api/images", s.listImages)
	e.GET("/api/images/:id", s.getImage)
	e.DELETE("/api/images/:id", s.deleteImage)
	e.POST("/api/images/:id/select", s.selectImage)
	e.GET("/api/panels", s.listPanels)
	e.POST("/api/recognize", s.recognize)
	e.GET("/api/status", s.status)
	e.GET("/api/notifications", s.notifications)
}

type uploadRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // base64, no data-URL prefix
}

type uploadResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price,omitempty"`
}

/*
uploadImage stores an uploaded product photo, tries to recognize its price
right away (with a user notification, like the original upload flow), and
registers a panel slot for it. Recognition failure does not fail the
upload.
*/
func (s *Server) uploadImage(c echo.Context) error {
	var req uploadRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" || req.Data == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name and data are required"})
	}

	blob, decodeErr := base64.StdEncoding.DecodeString(req.Data)
	if decodeErr != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "data is not valid base64"})
	}

	id, e := s.store.AddImage(blob, req.Name)
	if e != nil {
		tl.Log(tl.Error, palette.RedBold, "Failed to store uploaded image '%s': '%s'", req.Name, e)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not store image"})
	}

	item := panel.NewItem(id, req.Name, blob)
	s.panels.Add(item)

	resp := uploadResponse{ID: id, Name: req.Name}
	if price, ok := s.gateway.RecognizePrice(c.Request().Context(), blob); ok {
		if e := s.store.AttachPrice(id, price); e != nil {
			tl.Log(tl.Warning, palette.YellowBold, "Could not persist price for image '%s': '%s'", strconv.FormatInt(id, 10), e)
		}
		item.SetCaption(fmt.Sprintf(batch.CaptionPriceTemplate, price))
		resp.Price = price
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) listImages(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	query := c.QueryParam("query")

	images, total, e := s.store.List(page, pageSize, query)
	if e != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not list images"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"images": images,
		"total":  total,
	})
}

func (s *Server) getImage(c echo.Context) error {
	id, idErr := strconv.ParseInt(c.Param("id"), 10, 64)
	if idErr != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid image id"})
	}

	img, e := s.store.GetImage(id)
	if e != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "image not found"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"id":        img.ID,
		"name":      img.Name,
		"timestamp": img.Timestamp,
		"price":     img.Price,
		"data":      base64.StdEncoding.EncodeToString(img.Data),
	})
}

func (s *Server) deleteImage(c echo.Context) error {
	id, idErr := strconv.ParseInt(c.Param("id"), 10, 64)
	if idErr != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid image id"})
	}

	// A locked slot is mid-recognition; deleting under it would race the
	// scheduler's caption/unlock writes.
	if item, ok := s.panels.Get(id); ok && item.Locked() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "image is being recognized"})
	}

	if e := s.store.Delete(id); e != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not delete image"})
	}
	s.panels.Remove(id)

	return c.NoContent(http.StatusNoContent)
}

type selectRequest struct {
	Selected bool `json:"selected"`
}

func (s *Server) selectImage(c echo.Context) error {
	id, idErr := strconv.ParseInt(c.Param("id"), 10, 64)
	if idErr != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid image id"})
	}

	item, ok := s.panels.Get(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no such panel"})
	}

	var req selectRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	item.SetSelected(req.Selected)
	return c.JSON(http.StatusOK, item.Snapshot())
}

func (s *Server) listPanels(c echo.Context) error {
	items := s.panels.All()
	states := make([]panel.State, 0, len(items))
	for _, item := range items {
		states = append(states, item.Snapshot())
	}
	return c.JSON(http.StatusOK, states)
}

/*
recognize starts a batch recognition run. Selection policy lives here, at
the call site: when any slots are selected, only those are recognized;
otherwise every slot holding an image is. The job runs in the background
so the editing UI stays responsive; completion lands in the notification
feed and recognized prices are persisted onto their stored images.
*/
func (s *Server) recognize(c echo.Context) error {
	targets := s.panels.Selected()
	selectedOnly := len(targets) > 0
	if !selectedOnly {
		targets = s.panels.All()
	}

	eligible := make([]batch.Container, 0, len(targets))
	for _, item := range targets {
		if item.HasImage() {
			eligible = append(eligible, item)
		}
	}

	if len(eligible) == 0 {
		message := "未找到可识别图片！"
		if selectedOnly {
			message = "选中区域中没有可识别的图片！"
		}
		s.feed.Notify(message, 2000)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
	}

	if s.scheduler.Busy() {
		s.feed.Notify("正在进行识别，请稍候...", 2000)
		return c.JSON(http.StatusConflict, map[string]string{"error": "recognition already in progress"})
	}

	s.feed.Notify("开始识别"+strconv.Itoa(len(eligible))+"张图片...", 2000)

	go s.runRecognition(eligible)

	return c.JSON(http.StatusAccepted, map[string]any{"attempted": len(eligible)})
}

// runRecognition drives one background batch job to completion and fans
// its results out to storage, the notification feed and the report email.
func (s *Server) runRecognition(containers []batch.Container) {
	summary, runErr := s.scheduler.Run(context.Background(), containers)
	if runErr != nil {
		// Lost the race against another run; the guard above is advisory.
		if errors.Is(runErr, batch.ErrBusy) {
			s.feed.Notify("正在进行识别，请稍候...", 2000)
		}
		return
	}

	for _, result := range summary.Results {
		if !result.OK {
			continue
		}
		id, parseErr := strconv.ParseInt(result.ContainerID, 10, 64)
		if parseErr != nil {
			continue
		}
		if e := s.store.AttachPrice(id, result.Price); e != nil {
			tl.Log(tl.Warning, palette.YellowBold, "Could not persist price for image '%s': '%s'", result.ContainerID, e)
		}
	}

	s.feed.Notify("已完成"+strconv.Itoa(summary.Attempted)+"张图片的识别", 2000)

	if s.emailCfg.Enabled {
		s.sendBatchReport(summary)
	}
}

func (s *Server) sendBatchReport(summary batch.Summary) {
	subject := "Poster batch recognition report"
	textBody := fmt.Sprintf(
		"Job %s: attempted %d, succeeded %d, failed %d",
		summary.JobID, summary.Attempted, summary.Succeeded, summary.Failed,
	)
	htmlBody := "<p>" + textBody + "</p>"

	if e := email.SendMessage(email.Provider(s.emailCfg.Provider), s.emailCfg.Sender, s.emailCfg.Recipients, subject, textBody, htmlBody); e != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Could not send batch report email: '%s'", e)
	}
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ocr":  s.gateway.Status(),
		"busy": s.scheduler.Busy(),
	})
}

func (s *Server) notifications(c echo.Context) error {
	return c.JSON(http.StatusOK, s.feed.Recent())
}
