package echoapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
	"github.com/trezcool/quickgrade/services/worksheet"
)

var errMissingWorksheet = errors.New("missing worksheet file")

type sessionApi struct {
	svc      *grading.Service
	mailSvc  core.EmailService
	validate *validator.Validate
	logger   core.Logger
}

func registerSessionAPI(g *echo.Group, deps ServerDeps) {
	api := sessionApi{
		svc:      deps.GradingSvc,
		mailSvc:  deps.MailSvc,
		validate: deps.Validate,
		logger:   deps.Logger,
	}

	sg := g.Group("/sessions")

	// import
	sg.POST("", api.create)
	sg.GET("/import", api.importQuery)
	sg.POST("/import/worksheet", api.importWorksheet)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)

	dg.PUT("/students/:name/grade", api.setGrade)
	dg.PUT("/students/:name/comment", api.setComment)

	dg.GET("/feedback-items", api.queryFeedbackItems)
	dg.POST("/feedback-items", api.createFeedbackItem)
	dg.PUT("/feedback-items/order", api.reorderFeedbackItems)
	dg.PUT("/feedback-items/:itemID", api.updateFeedbackItem)
	dg.DELETE("/feedback-items/:itemID", api.destroyFeedbackItem)
	dg.POST("/feedback-items/:itemID/apply", api.applyFeedbackItem)

	dg.GET("/selection", api.retrieveSelection)
	dg.PUT("/selection", api.updateSelection)
	dg.POST("/selection/toggle", api.toggleSelection)
	dg.DELETE("/selection", api.clearSelection)

	dg.GET("/history", api.queryHistory)
	dg.POST("/history/revert", api.revert)

	dg.GET("/export", api.export)
	dg.POST("/export/mail", api.mailExport)
	dg.POST("/save", api.save)
}

// Import

func (api *sessionApi) open(ctx echo.Context, p grading.ImportPayload) error {
	state, err := api.svc.Open(p)
	if err != nil {
		return errors.Wrap(err, "opening session")
	}
	api.logger.Info(fmt.Sprintf("imported %d students", len(state.Students)), core.LogScope{
		SessionID:      state.ID,
		AssignmentName: state.AssignmentName,
	})
	return ctx.JSON(http.StatusCreated, state)
}

func (api *sessionApi) create(ctx echo.Context) error {
	raw, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading import payload")
	}
	p, err := grading.DecodeImport(raw, api.validate)
	if err != nil {
		return err
	}
	return api.open(ctx, p)
}

func (api *sessionApi) importQuery(ctx echo.Context) error {
	p, err := grading.DecodeImportQuery(ctx.QueryParam("data"), api.validate)
	if err != nil {
		return err
	}
	return api.open(ctx, p)
}

func (api *sessionApi) importWorksheet(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: errMissingWorksheet.Error()})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening worksheet")
	}
	defer func() { _ = f.Close() }()

	p, err := worksheet.Import(f, ctx.FormValue("assignment_name"))
	if err != nil {
		return err
	}
	if err = p.Validate(api.validate); err != nil {
		return err
	}
	return api.open(ctx, p)
}

// Session

func (api *sessionApi) retrieve(ctx echo.Context) error {
	state, err := api.svc.Get(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, state)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	if err := api.svc.Close(ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Students

func (api *sessionApi) setGrade(ctx echo.Context) error {
	var data GradeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeRequest")
	}
	st, err := api.svc.SetGrade(ctx.Param("id"), pathParam(ctx, "name"), data.Grade)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *sessionApi) setComment(ctx echo.Context) error {
	var data CommentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CommentRequest")
	}
	st, err := api.svc.SetComment(ctx.Param("id"), pathParam(ctx, "name"), data.Comment)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

// Feedback items

func (api *sessionApi) queryFeedbackItems(ctx echo.Context) error {
	items, err := api.svc.FeedbackItems(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *sessionApi) createFeedbackItem(ctx echo.Context) error {
	var data grading.NewFeedbackItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeedbackItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.AddFeedbackItem(ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *sessionApi) updateFeedbackItem(ctx echo.Context) error {
	itemID, err := intParam(ctx, "itemID")
	if err != nil {
		return err
	}
	var data grading.UpdateFeedbackItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFeedbackItem")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.EditFeedbackItem(ctx.Param("id"), itemID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *sessionApi) destroyFeedbackItem(ctx echo.Context) error {
	itemID, err := intParam(ctx, "itemID")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteFeedbackItem(ctx.Param("id"), itemID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) reorderFeedbackItems(ctx echo.Context) error {
	var data ReorderRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	items, err := api.svc.ReorderFeedbackItems(ctx.Param("id"), data.IDs)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *sessionApi) applyFeedbackItem(ctx echo.Context) error {
	itemID, err := intParam(ctx, "itemID")
	if err != nil {
		return err
	}
	var data StudentsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentsRequest")
	}

	students, err := api.svc.ApplyFeedback(ctx.Param("id"), itemID, data.Students)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

// Selection

func (api *sessionApi) retrieveSelection(ctx echo.Context) error {
	names, err := api.svc.Selection(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, StudentsRequest{Students: names})
}

func (api *sessionApi) updateSelection(ctx echo.Context) error {
	var data StudentsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentsRequest")
	}
	names, err := api.svc.SetSelection(ctx.Param("id"), data.Students...)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, StudentsRequest{Students: names})
}

func (api *sessionApi) toggleSelection(ctx echo.Context) error {
	var data ToggleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	names, err := api.svc.ToggleSelection(ctx.Param("id"), data.Student)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, StudentsRequest{Students: names})
}

func (api *sessionApi) clearSelection(ctx echo.Context) error {
	if err := api.svc.ClearSelection(ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// History

func (api *sessionApi) queryHistory(ctx echo.Context) error {
	records, err := api.svc.History(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *sessionApi) revert(ctx echo.Context) error {
	var data RevertRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RevertRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	st, err := api.svc.Revert(ctx.Param("id"), data.Timestamp, data.StudentName)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

// Export & Save

func (api *sessionApi) exportWorksheet(id string) (grading.SessionState, []byte, error) {
	state, err := api.svc.Get(id)
	if err != nil {
		return grading.SessionState{}, nil, err
	}
	data, err := worksheet.ExportBytes(state.Students)
	if err != nil {
		return grading.SessionState{}, nil, errors.Wrap(err, "exporting worksheet")
	}
	return state, data, nil
}

func (api *sessionApi) export(ctx echo.Context) error {
	state, data, err := api.exportWorksheet(ctx.Param("id"))
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", worksheetFilename(state)))
	return ctx.Blob(http.StatusOK, worksheet.ContentType, data)
}

func (api *sessionApi) mailExport(ctx echo.Context) error {
	var data MailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	state, csv, err := api.exportWorksheet(ctx.Param("id"))
	if err != nil {
		return err
	}
	msg := &core.EmailMessage{
		To:          []mail.Address{{Address: data.Email}},
		Subject:     state.AssignmentName + " grades",
		TextContent: fmt.Sprintf("Grading worksheet of %q (%d students) attached.", state.AssignmentName, len(state.Students)),
	}
	if err = msg.Attach(bytes.NewReader(csv), worksheetFilename(state), worksheet.ContentType); err != nil {
		return errors.Wrap(err, "attaching worksheet")
	}
	api.mailSvc.SendMessages(msg)

	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "The worksheet will arrive in your inbox shortly."})
}

func (api *sessionApi) save(ctx echo.Context) error {
	doc, err := api.svc.Save(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, grading.SaveSummary{
		ID:             doc.ID,
		AssignmentName: doc.AssignmentName,
		StudentCount:   len(doc.Students),
		Timestamp:      doc.Timestamp,
	})
}

// worksheetFilename turns "Lab 1: Loops" into "lab-1-loops.csv".
func worksheetFilename(state grading.SessionState) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(state.AssignmentName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if name == "" {
		name = "grades"
	}
	return name + ".csv"
}

type (
	GradeRequest struct {
		Grade string `json:"grade"`
	}

	CommentRequest struct {
		Comment string `json:"comment"`
	}

	ReorderRequest struct {
		IDs []int `json:"ids" validate:"required"`
	}

	StudentsRequest struct {
		Students []string `json:"students"`
	}

	ToggleRequest struct {
		Student string `json:"student" validate:"notblank"`
	}

	RevertRequest struct {
		Timestamp   time.Time `json:"timestamp" validate:"required"`
		StudentName string    `json:"studentName" validate:"notblank"`
	}

	MailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (mr *MailRequest) Validate(validate *validator.Validate) error {
	mr.Email = core.CleanString(mr.Email, true /* lower */)
	return validate.Struct(mr)
}
