/*
Package monitoring provides Prometheus metrics collection.

It tracks HTTP requests, script executions, remote API calls, and instance
connectivity on a private registry.

Usage:

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.RecordExecution("success", elapsed)

	timer := monitoring.NewTimer(metrics, "API.GetProjectInfo")
	// ... perform call ...
	timer.Stop("success")
*/
package monitoring
