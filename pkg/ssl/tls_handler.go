package ssl

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// SecureHandler 安全响应头中间件；forceTLS 为 true 时额外做 HTTPS 跳转
func SecureHandler(host string, port int, forceTLS bool, isDevelopment bool) gin.HandlerFunc {
	opts := secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		IsDevelopment:      isDevelopment,
	}
	if forceTLS {
		opts.SSLRedirect = true
		opts.SSLHost = host + ":" + strconv.Itoa(port)
	}
	secureMiddleware := secure.New(opts)

	return func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			// Process 已经写入了响应（重定向），这里只中止 gin 的处理链
			c.Abort()
			return
		}

		c.Next()
	}
}
