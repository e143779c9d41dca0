// Command go-detect serves grocery-item detection over HTTP: POST
// /detect with a base64 image, get labeled normalized bounding boxes
// back. The network forward pass runs through OpenCV DNN (Darknet
// weights) or ONNX Runtime; this process owns the decode pipeline.
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/grocer-eye/go-detect/classes"
	"github.com/grocer-eye/go-detect/config"
	"github.com/grocer-eye/go-detect/detector"
	"github.com/grocer-eye/go-detect/inference"
	"github.com/grocer-eye/go-detect/inference/darknet"
	"github.com/grocer-eye/go-detect/models/postprocess"
	"github.com/grocer-eye/go-detect/models/yolov3"
	"github.com/grocer-eye/go-detect/server"
)

// YOLOv3 output grid sizes for a 416 input (strides 32, 16, 8) and the
// tensor names of the exported ONNX graph.
var (
	onnxGrids       = []int{13, 26, 52}
	onnxInputName   = "input_1"
	onnxOutputNames = []string{"conv_81", "conv_93", "conv_105"}
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()

	table, err := classes.Load(cfg.ClassesPath)
	if err != nil {
		log.Printf("using built-in class table: %v", err)
		table = classes.Fallback
	}

	params := yolov3.DefaultParams(len(table))
	params.ConfidenceThreshold = cfg.ConfidenceThreshold
	nms := postprocess.NMSConfig{
		ScoreThreshold: cfg.ConfidenceThreshold,
		IoUThreshold:   0.4,
	}

	var det server.Detector
	engine, err := buildEngine(cfg, params)
	if err != nil {
		log.Printf("model not loaded; /detect will return 503 until config and weights are in place: %v", err)
	} else {
		defer engine.Close()
		det = detector.New(engine, params, nms, table)
		log.Printf("model loaded (%d classes, confidence threshold %.2f)", len(table), cfg.ConfidenceThreshold)
	}

	srv := server.New(det)
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("grocer-eye detection server listening on %s (model dir: %s)", addr, cfg.GrocerEyeDir)
	log.Fatal(http.ListenAndServe(addr, srv.Handler()))
}

// buildEngine constructs the configured inference engine. The ONNX
// engine is used when GROCER_EYE_ONNX points at an exported model;
// otherwise the Darknet weights are loaded through OpenCV DNN.
func buildEngine(cfg config.Config, params yolov3.Params) (inference.Engine, error) {
	if cfg.ONNXModelPath != "" {
		return inference.NewONNXEngine(inference.ONNXConfig{
			ModelPath:   cfg.ONNXModelPath,
			InputSize:   params.InputSize,
			Anchors:     params.Anchors,
			Classes:     params.Classes,
			Grids:       onnxGrids,
			InputName:   onnxInputName,
			OutputNames: onnxOutputNames,
		})
	}
	return darknet.NewEngine(darknet.Config{
		ConfigPath:  cfg.ConfigPath,
		WeightsPath: cfg.WeightsPath,
		InputSize:   params.InputSize,
		Anchors:     params.Anchors,
		Classes:     params.Classes,
	})
}
