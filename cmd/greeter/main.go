// Command greeter runs the greeting function locally using the functions
// framework. The port is read from the PORT environment variable.
package main

import (
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"go.uber.org/zap"

	_ "github.com/fgrosse/voicebot/function"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if os.Getenv("FUNCTION_TARGET") == "" {
		_ = os.Setenv("FUNCTION_TARGET", "Greet")
	}

	logger.Info("Starting functions framework", zap.String("port", port))
	if err := funcframework.Start(port); err != nil {
		logger.Fatal("Functions framework stopped", zap.Error(err))
	}
}
