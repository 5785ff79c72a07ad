package middleware

import (
	"bytes"
	"io"
	"time"

	"tender-kb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// bodyLogWriter перехватывает тело ответа для журнала.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write пишет ответ одновременно клиенту и во внутренний буфер.
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogger пишет в журнал запрос и ответ целиком вместе с задержкой.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Тело запроса читается и возвращается обратно, чтобы
		// обработчики дальше по цепочке могли прочитать его снова.
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		latency := time.Since(startTime)
		log.Infow("HTTP-запрос",
			"statusCode", c.Writer.Status(),
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", string(requestBody),
			"responseBody", blw.body.String(),
		)
	}
}
