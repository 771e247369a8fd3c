/*
Package facecam is a face detection and recognition toolkit working on webcam
streams, video files and still images. Faces are located with pixel intensity
comparison cascades, optionally enriched with pupil and facial landmark
points, and identified with a Local Binary Patterns Histograms recognizer.

The package provides a command line interface for training, testing and
running the recognizer. To check the supported commands type:

	$ facecam --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"log"

		"github.com/esimov/facecam"
	)

	func main() {
		cfg := facecam.Default()
		proc, err := facecam.NewProcessor(cfg)
		if err != nil {
			log.Fatal(err)
		}

		img, err := facecam.DecodeImage("people.jpg")
		if err != nil {
			log.Fatal(err)
		}
		res, err := proc.ProcessImage(img)
		if err != nil {
			log.Fatal(err)
		}
		if err := facecam.SaveImage("people_marked.jpg", res); err != nil {
			log.Fatal(err)
		}
	}
*/
package facecam
