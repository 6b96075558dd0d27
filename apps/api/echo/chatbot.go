package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shuleboard/core/chatbot"
	"github.com/trezcool/shuleboard/core/school"
)

type chatbotApi struct {
	*Server
}

func registerChatbotAPI(g *echo.Group, s *Server, jwt, tenant echo.MiddlewareFunc) {
	api := chatbotApi{Server: s}

	cg := g.Group("/chatbot", jwt, tenant, featureMiddleware(school.FeatureChatbot))
	cg.POST("/reply", api.reply)
	cg.PATCH("/messages/:id/feedback", api.feedback)
	cg.GET("/messages/insights", api.insights)
	cg.GET("/feedback-queue", api.feedbackQueue)
}

func (api chatbotApi) reply(ctx echo.Context) error {
	sch, err := getContextSchool(ctx)
	if err != nil {
		return err
	}

	var data chatbot.NewQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	res, err := api.ChatbotSvc.Reply(ctx.Request().Context(), sch.Code, data)
	if err != nil {
		return errors.Wrap(err, "replying")
	}
	api.metrics.replies.WithLabelValues(res.Source, res.Confidence).Inc()
	return ctx.JSON(http.StatusOK, res)
}

func (api chatbotApi) feedback(ctx echo.Context) error {
	sch, err := getContextSchool(ctx)
	if err != nil {
		return err
	}

	var data chatbot.FeedbackUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeedbackUpdate")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	exch, err := api.ChatbotSvc.SetFeedback(ctx.Request().Context(), sch.Code, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting feedback")
	}
	api.metrics.feedback.WithLabelValues(data.Feedback).Inc()
	return ctx.JSON(http.StatusOK, exch)
}

func (api chatbotApi) insights(ctx echo.Context) error {
	sch, err := getContextSchool(ctx)
	if err != nil {
		return err
	}

	insights, err := api.ChatbotSvc.Insights(ctx.Request().Context(), sch.Code)
	if err != nil {
		return errors.Wrap(err, "computing insights")
	}
	return ctx.JSON(http.StatusOK, insights)
}

func (api chatbotApi) feedbackQueue(ctx echo.Context) error {
	sch, err := getContextSchool(ctx)
	if err != nil {
		return err
	}

	var filter chatbot.FeedbackQueueFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to FeedbackQueueFilter")
	}

	entries, err := api.ChatbotSvc.FeedbackQueue(ctx.Request().Context(), sch.Code, filter)
	if err != nil {
		return errors.Wrap(err, "querying feedback queue")
	}
	return ctx.JSON(http.StatusOK, entries)
}
