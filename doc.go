/*
Package facenorm detects a single face on an image, locates its facial landmarks,
estimates the head pose and produces a geometrically normalized face: the image is
rotated to level the eyes, cropped around the landmarks and resized, while the
landmark coordinates are carried into the frame of the normalized face.

The face detection, the landmark localization and the pose estimation are
provided by pluggable backends. The default ones are built on the pigo pixel
intensity comparison cascades; an OpenCV Haar cascade detector is available
when the module is built with the opencv tag.

The package provides a command line interface as well. To check the supported flags type:

	$ facenorm --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"log"

		"github.com/esimov/facenorm"
	)

	func main() {
		cfg, err := facenorm.LoadConfig("detector.cfg")
		if err != nil {
			log.Fatal(err)
		}
		models, err := facenorm.NewModels(cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer models.Close()

		p := facenorm.NewProcessor(models, nil)
		face, err := p.DetectNorm("face.jpg")
		if err != nil {
			log.Fatalf("error normalizing the face: %v", err)
		}
		log.Println(face.Landmarks.Points)
	}
*/
package facenorm
