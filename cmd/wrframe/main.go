// Command wrframe builds frames of a synthetic scene and prints what the
// frame builder produced for each of them.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gputypes"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/wr"
	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/spatial"
)

const (
	imageKey    resource.ImageKey = 1
	scrollStep                    = 40
	cornerSize                    = 12
	imageWidth                    = 2048
	imageHeight                   = 512
)

func main() {
	var (
		configPath = flag.String("config", "", "frame builder config (.toml, .yaml)")
		frames     = flag.Int("frames", 3, "number of frames to build")
		prims      = flag.Int("prims", 200, "number of rectangles in the scene")
		width      = flag.Int("width", 1280, "output width in device pixels")
		height     = flag.Int("height", 720, "output height in device pixels")
		verbose    = flag.Bool("v", false, "log frame building at debug level")
	)
	flag.Parse()

	if *verbose {
		wr.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	var opts []wr.Option
	if *configPath != "" {
		cfg, err := wr.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		opts = append(opts, wr.WithConfig(cfg))
	}

	resources := resource.New()
	if err := addCheckerboard(resources); err != nil {
		log.Fatalf("Failed to add image: %v", err)
	}

	output := geom.IntRectFromSize(geom.IntSize{Width: int32(*width), Height: int32(*height)})
	scene, scroll, err := buildScene(output, *prims)
	if err != nil {
		log.Fatalf("Failed to build scene: %v", err)
	}

	fb := wr.NewFrameBuilder(opts...)
	gpu := gpucache.New()
	p := message.NewPrinter(language.English)

	p.Printf("%-6s %9s %7s %6s %11s %8s %7s %14s\n",
		"frame", "visible", "passes", "tasks", "dirty_tiles", "batches", "is_nop", "must_be_drawn")
	for i := range *frames {
		scene.Tree.SetScrollOffset(scroll, geom.Vec(0, float32(i*scrollStep)))
		frame, err := fb.Build(scene, resources, gpu)
		if err != nil {
			log.Fatalf("Frame %d: %v", i, err)
		}
		if frame.ResourceErr != nil {
			log.Printf("Frame %d: missing resources: %v", i, frame.ResourceErr)
		}
		s := frame.Stats
		p.Printf("%-6d %9d %7d %6d %11d %8d %7t %14t\n",
			i, s.VisiblePrimitives, s.Passes, s.RenderTasks, s.DirtyTiles, s.Batches,
			frame.IsNop(), frame.MustBeDrawn())
		frame.MarkRendered()
	}
}

// buildScene lays out a scrolled picture cache slice holding a grid of
// rounded rectangles, a tiled image and a blurred picture.
func buildScene(output geom.IntRect, prims int) (*wr.BuiltScene, spatial.NodeIndex, error) {
	sb := wr.NewSceneBuilder(output, 1)
	viewport := output.ToRect()
	scroll := sb.Tree().AddScrollFrame(spatial.RootNode, spatial.ScrollFrameInfo{Viewport: viewport})

	root := sb.AddPicture(spatial.RootNode, nil)
	slice := sb.AddTileCache(0, scroll, clip.NoChain, nil)
	sb.PushPicture(root, slice, clip.NoChain)
	sb.SetRoot(root)

	const cols = 10
	cell := viewport.Width() / cols
	for i := range prims {
		x := float32(i%cols) * cell
		y := float32(i/cols) * cell
		r := geom.NewRect(x+4, y+4, cell-8, cell-8)
		chain := sb.Clips().AddClipChain(clip.NoChain,
			clip.NewRoundedRectangle(scroll, r, clip.UniformRadius(cornerSize), clip.ModeClip))
		sb.PushRect(slice, scroll, r, colorAt(i), chain)
	}

	top := float32((prims+cols-1)/cols) * cell
	sb.PushImage(slice, scroll, geom.NewRect(0, top, imageWidth/2, imageHeight/2), imageKey, prim.ImageData{}, clip.NoChain)

	blurred := sb.AddPicture(scroll, prim.FilterMode(prim.Filter{Kind: prim.FilterBlur, Opacity: 1, StdDeviation: 6}))
	sb.PushRect(blurred, scroll, geom.NewRect(viewport.Width()/2, top, 200, 200), gputypes.Color{G: 0.6, B: 0.2, A: 1}, clip.NoChain)
	sb.PushPicture(slice, blurred, clip.NoChain)

	scene, err := sb.Build()
	if err != nil {
		return nil, 0, err
	}
	return scene, scroll, nil
}

func colorAt(i int) gputypes.Color {
	t := float64(i%16) / 15
	return gputypes.Color{R: 0.2 + 0.6*t, G: 0.3, B: 0.8 - 0.6*t, A: 1}
}

// addCheckerboard registers a generated image large enough to be drawn
// in tiles.
func addCheckerboard(c *resource.Cache) error {
	return c.AddImage(imageKey, resource.ImageTemplate{
		Descriptor: resource.ImageDescriptor{
			Size:     geom.IntSize{Width: imageWidth, Height: imageHeight},
			Format:   gputypes.TextureFormatRGBA8Unorm,
			IsOpaque: true,
		},
		TileSize: 256,
		Rasterizer: resource.RasterizerFunc(func(r geom.IntRect) ([]byte, error) {
			size := r.Size()
			buf := make([]byte, 0, size.Area()*4)
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					v := byte(0x40)
					if (x/32+y/32)%2 == 0 {
						v = 0xc0
					}
					buf = append(buf, v, v, v, 0xff)
				}
			}
			return buf, nil
		}),
	})
}
