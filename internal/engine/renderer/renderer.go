// Package renderer is the OpenGL render backend. It draws scene objects into
// an offscreen framebuffer of a hidden SDL window.
package renderer

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/terracam/internal/engine/camera"
	"github.com/Faultbox/terracam/internal/engine/framebuffer"
	"github.com/Faultbox/terracam/internal/engine/scene"
	"github.com/Faultbox/terracam/internal/engine/shader"
	"github.com/Faultbox/terracam/internal/engine/window"
	"github.com/Faultbox/terracam/internal/logger"
)

// gpuObject holds the GPU resources of one scene object.
type gpuObject struct {
	obj        *scene.Object
	vao        uint32
	vbo        uint32
	ebo        uint32
	tex        uint32
	indexCount int32
}

// GL renders scene objects with OpenGL.
// It must be used from the thread that created it.
type GL struct {
	win         *window.Window
	program     *shader.Program
	framebuffer *framebuffer.Framebuffer
	objects     []*gpuObject
	log         *zap.Logger
}

// New opens a hidden window, initializes OpenGL and compiles the shaders.
func New() (*GL, error) {
	r := &GL{log: logger.Named("renderer")}

	win, err := window.New(window.Config{Title: "terracam", Width: 16, Height: 16, Hidden: true})
	if err != nil {
		return nil, fmt.Errorf("creating GL context: %w", err)
	}
	r.win = win

	if err := gl.Init(); err != nil {
		win.Close()
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	r.program, err = shader.Compile(vertexShader, fragmentShader)
	if err != nil {
		win.Close()
		return nil, fmt.Errorf("terrain shader: %w", err)
	}

	r.framebuffer, err = framebuffer.New(16, 16)
	if err != nil {
		r.program.Delete()
		win.Close()
		return nil, err
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Disable(gl.CULL_FACE)

	return r, nil
}

// Add uploads o to the GPU.
func (r *GL) Add(o *scene.Object) error {
	if err := o.Validate(); err != nil {
		return err
	}
	for _, g := range r.objects {
		if g.obj == o {
			return fmt.Errorf("%w: %s", scene.ErrDuplicateObject, o.Name)
		}
	}

	verts, indices := interleave(o)
	g := &gpuObject{obj: o, indexCount: int32(len(indices))}
	if len(indices) > 0 {
		g.upload(verts, indices)
	}
	if o.Material.Texture != nil {
		g.tex = uploadTexture(o.Material.Texture)
	}
	r.objects = append(r.objects, g)

	r.log.Debug("object uploaded",
		zap.String("object", o.Name),
		zap.Int("vertices", len(verts)),
		zap.Int("faces", len(indices)/3),
		zap.Bool("textured", g.tex != 0),
	)
	return nil
}

// Remove releases the GPU resources of o. Unknown objects are ignored.
func (r *GL) Remove(o *scene.Object) {
	for i, g := range r.objects {
		if g.obj == o {
			g.destroy()
			r.objects = append(r.objects[:i], r.objects[i+1:]...)
			return
		}
	}
}

// Render draws all objects from v on the background color.
func (r *GL) Render(v camera.View) (*image.RGBA, error) {
	w, h := v.Intrinsics.Width, v.Intrinsics.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", camera.ErrInvalidCamera, w, h)
	}

	r.framebuffer.Resize(int32(w), int32(h))
	r.framebuffer.Bind()
	defer r.framebuffer.Unbind()

	bg := scene.Background
	r.framebuffer.Clear(float32(bg[0])/255, float32(bg[1])/255, float32(bg[2])/255, 1)

	viewProj := v.Projection().Mul(v.ViewMatrix())

	r.program.Use()
	gl.UniformMatrix4fv(r.program.Uniform("uViewProj"), 1, false, viewProj.Ptr())
	gl.Uniform1i(r.program.Uniform("uTexture"), 0)
	gl.ActiveTexture(gl.TEXTURE0)

	for _, g := range r.objects {
		if g.vao == 0 {
			continue
		}
		if g.tex != 0 {
			gl.Uniform1i(r.program.Uniform("uTextured"), 1)
			gl.BindTexture(gl.TEXTURE_2D, g.tex)
		} else {
			gl.Uniform1i(r.program.Uniform("uTextured"), 0)
		}
		gl.BindVertexArray(g.vao)
		gl.DrawElements(gl.TRIANGLES, g.indexCount, gl.UNSIGNED_INT, nil)
	}
	gl.BindVertexArray(0)

	if e := gl.GetError(); e != gl.NO_ERROR {
		return nil, fmt.Errorf("OpenGL error 0x%x", e)
	}
	return r.framebuffer.ReadImage(), nil
}

// Close releases every GPU resource and the window.
func (r *GL) Close() {
	r.log.Info("closing renderer")
	for _, g := range r.objects {
		g.destroy()
	}
	r.objects = nil
	r.framebuffer.Destroy()
	r.program.Delete()
	r.win.Close()
}

func (g *gpuObject) upload(vertices []Vertex, indices []uint32) {
	gl.GenVertexArrays(1, &g.vao)
	gl.BindVertexArray(g.vao)

	gl.GenBuffers(1, &g.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, g.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*vertexSize, unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)

	// Position (location 0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, vertexSize, 0)
	gl.EnableVertexAttribArray(0)

	// Normal (location 1)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, vertexSize, 3*4)
	gl.EnableVertexAttribArray(1)

	// TexCoord (location 2)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, vertexSize, 6*4)
	gl.EnableVertexAttribArray(2)

	gl.GenBuffers(1, &g.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, g.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, unsafe.Pointer(&indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
}

func (g *gpuObject) destroy() {
	if g.vao != 0 {
		gl.DeleteVertexArrays(1, &g.vao)
		g.vao = 0
	}
	if g.vbo != 0 {
		gl.DeleteBuffers(1, &g.vbo)
		g.vbo = 0
	}
	if g.ebo != 0 {
		gl.DeleteBuffers(1, &g.ebo)
		g.ebo = 0
	}
	if g.tex != 0 {
		gl.DeleteTextures(1, &g.tex)
		g.tex = 0
	}
}

func uploadTexture(img *image.RGBA) uint32 {
	if len(img.Pix) == 0 {
		return 0
	}
	var texID uint32
	gl.GenTextures(1, &texID)
	gl.BindTexture(gl.TEXTURE_2D, texID)

	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA,
		int32(img.Bounds().Dx()), int32(img.Bounds().Dy()),
		0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))

	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	return texID
}
