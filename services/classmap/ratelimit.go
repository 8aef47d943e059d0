// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classmap

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond perMinute with 429 Too Many Requests.
//
// Description:
//
//	A single token bucket is shared by every caller of the wrapped route.
//	burst requests may arrive at once; the bucket refills at perMinute.
//	Rejected responses carry Retry-After in whole seconds. A non-positive
//	perMinute disables the limit.
//
// Thread Safety: Safe for concurrent use; rate.Limiter is synchronized.
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)

	return func(c *gin.Context) {
		res := limiter.Reserve()
		delay := res.Delay()
		if delay == 0 {
			c.Next()
			return
		}
		res.Cancel()
		analyzeRejectedTotal.Inc()

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		requestsTotal.WithLabelValues("RateLimit", statusClass(http.StatusTooManyRequests)).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "rate limit exceeded",
			Code:  "RATE_LIMITED",
		})
	}
}
