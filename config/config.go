// Package config - environment configuration for the detection server.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config collects everything the server reads from the environment.
type Config struct {
	// GrocerEyeDir is the root of the model repository checkout.
	GrocerEyeDir string
	// ConfigPath is the Darknet .cfg topology file.
	ConfigPath string
	// WeightsPath is the trained .weights file.
	WeightsPath string
	// ONNXModelPath, when set, switches the server to the ONNX Runtime
	// engine instead of OpenCV DNN.
	ONNXModelPath string
	// ClassesPath is the class-name table file.
	ClassesPath string
	// ConfidenceThreshold filters candidate detections.
	ConfidenceThreshold float32
	// Port is the HTTP listen port.
	Port int
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present; real environment
// variables win over it.
func Load() Config {
	_ = godotenv.Load()

	dir := getEnv("GROCER_EYE_DIR", "../GrocerEye")
	cfg := Config{
		GrocerEyeDir:        dir,
		ConfigPath:          filepath.Join(dir, "darknet_configs", "yolov3_custom_test.cfg"),
		WeightsPath:         getEnv("GROCER_EYE_WEIGHTS", filepath.Join(dir, "backup", "grocer-eye_final.weights")),
		ONNXModelPath:       os.Getenv("GROCER_EYE_ONNX"),
		ClassesPath:         getEnv("CLASSES_FILE", "classes.txt"),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESH", 0.4),
		Port:                getEnvInt("PORT", 5000),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		log.Printf("ignoring invalid %s=%q: %v", key, v, err)
		return fallback
	}
	return float32(f)
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("ignoring invalid %s=%q: %v", key, v, err)
		return fallback
	}
	return n
}
