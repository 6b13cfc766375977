package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	s.echo.GET("/videos", s.getVideoInfo)
	s.echo.GET("/items", s.getVideoInfo)
}
