// Command rtdemo renders a procedural scene with the progressive ray tracer
// and writes the converged image.
package main

import (
	"flag"
	"image"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/raytrace"
	"github.com/gogpu/raytrace/backend"
	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/scene"

	_ "github.com/gogpu/raytrace/backend/software"
	_ "github.com/gogpu/raytrace/backend/wgpu"
)

func main() {
	var (
		width    = flag.Int("width", 640, "image width")
		height   = flag.Int("height", 360, "image height")
		frames   = flag.Int("frames", 64, "frames to accumulate")
		output   = flag.String("output", "render.png", "output file (.png, .tif or .tiff)")
		scale    = flag.Float64("scale", 1, "output scale factor")
		backendN = flag.String("backend", "", "backend name (default: best available)")
		schema   = flag.String("schema", "extended", "sphere schema: basic or extended")
		spheres  = flag.Int("spheres", 100, "sphere placement attempts")
		seed     = flag.Uint64("seed", 1, "random seed")
		orbit    = flag.Float64("orbit", 0, "camera orbit in degrees per frame (resets accumulation)")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	raytrace.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	sphereSchema, err := scene.ParseSphereSchema(*schema)
	if err != nil {
		log.Fatalf("Invalid flag: %v", err)
	}

	dev, name, err := openDevice(*backendN)
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer dev.Close()

	cam := scene.NewPerspectiveCamera(60, float32(*width)/float32(*height), 0.1, 1000)
	eye := mgl32.Vec3{0, 40, 140}
	cam.LookAt(eye, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	sun := scene.NewDirectionalLight(mgl32.Vec3{-0.4, -1, -0.6}, 1.2)

	cfg := raytrace.DefaultConfig()
	cfg.SphereSchema = sphereSchema
	seedCfg := scene.DefaultSeedConfig()
	seedCfg.MaxSpheres = *spheres

	tr := raytrace.New(dev, raytrace.FixedViewport{Width: *width, Height: *height}, cam,
		raytrace.WithConfig(cfg),
		raytrace.WithLight(sun),
		raytrace.WithSeed(*seed),
		raytrace.WithSphereSeeding(seedCfg),
	)

	ground := scene.NewInstance(scene.Quad())
	ground.SetScale(mgl32.Vec3{400, 1, 400})
	tr.Register(ground)

	cube := scene.NewInstance(scene.Cube())
	cube.SetScale(mgl32.Vec3{20, 20, 20})
	cube.SetPosition(mgl32.Vec3{0, 10, -60})
	cube.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0}))
	tr.Register(cube)

	if err := tr.Start(); err != nil {
		log.Fatalf("Failed to start tracer: %v", err)
	}
	defer tr.Stop()

	start := time.Now()
	last := start
	resets := 0
	for i := 0; i < *frames; i++ {
		if *orbit != 0 && i > 0 {
			a := mgl32.DegToRad(float32(*orbit) * float32(i))
			sin, cos := math.Sincos(float64(a))
			cam.LookAt(mgl32.Vec3{eye[2] * float32(sin), eye[1], eye[2] * float32(cos)},
				mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
		}

		now := time.Now()
		if err := tr.OnFrame(now.Sub(last)); err != nil {
			log.Fatalf("Frame %d failed: %v", i, err)
		}
		last = now
		if tr.Sample() == 1 {
			resets++
		}
	}
	elapsed := time.Since(start)

	img, err := tr.Snapshot()
	if err != nil {
		log.Fatalf("Failed to read image: %v", err)
	}
	if err := save(*output, scaled(img, *scale)); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	stats := tr.BufferStats()
	traced := *frames * *width * *height
	p := message.NewPrinter(language.English)
	p.Fprintf(os.Stderr, "backend %s: %d frames (%d resets) of %dx%d in %v, %.1f frames/s\n",
		name, *frames, resets, *width, *height, elapsed.Round(time.Millisecond),
		float64(*frames)/elapsed.Seconds())
	p.Fprintf(os.Stderr, "%d spheres, %d samples, %d pixels traced, %d buffer allocations, %d uploads\n",
		len(tr.Registry().Spheres()), tr.Sample(), traced, stats.Allocations, stats.Uploads)
	log.Printf("Image saved to %s\n", *output)
}

func openDevice(name string) (gpucore.Device, string, error) {
	if name == "" {
		return backend.Default()
	}
	dev, err := backend.Open(name)
	return dev, name, err
}

// scaled resizes img by factor with Catmull-Rom filtering.
func scaled(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor == 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor))
	h := max(1, int(float64(b.Dy())*factor))
	dst := image.NewRGBA64(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func save(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		err = png.Encode(f, img)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
