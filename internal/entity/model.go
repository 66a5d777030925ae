package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/planetilt/host/internal/asset"
	"github.com/planetilt/host/internal/render"
	"go.uber.org/zap"
)

// LoadDone receives the entity once its model load has been applied, or the
// error that stopped it. It runs on the goroutine that processes completions.
type LoadDone func(*Entity, error)

// SetModel loads a model asynchronously. The loader is chosen from the path
// extension; an unknown extension fails here and done is never called.
//
// Scene-graph, mesh and scene-description results are installed through
// SetGeometry. A .obj with a material path is installed as the entity's
// render object as is, bypassing SetGeometry. Loader failures reach done as
// *asset.LoadError. If the entity was removed before the load finished,
// nothing is attached and done gets ErrNotRegistered.
func (e *Entity) SetModel(ctx context.Context, path, mtlPath string, done LoadDone) error {
	kind, err := asset.Select(path, mtlPath)
	if err != nil {
		return err
	}
	if !e.registered {
		return ErrNotRegistered
	}
	s := e.sim
	if s.assets == nil {
		return ErrNoAssetLibrary
	}

	if kind == asset.KindTexturedMesh {
		tl := s.assets.TexturedMesh
		if tl == nil {
			return fmt.Errorf("%w: no loader for %s", ErrUnsupportedAssetFormat, kind)
		}
		s.inflight.Add(1)
		go func() {
			var group *render.Group
			err := recoverLoad(path, func() (err error) {
				group, err = tl.LoadTextured(ctx, path, mtlPath)
				return err
			})
			s.post(ctx, func() { e.finishTextured(path, group, err, done) })
		}()
		return nil
	}

	loader, err := s.assets.For(kind)
	if err != nil {
		return err
	}
	s.inflight.Add(1)
	go func() {
		var res asset.Result
		err := recoverLoad(path, func() (err error) {
			res, err = loader.Load(ctx, path)
			return err
		})
		s.post(ctx, func() { e.finishGeometry(path, res, err, done) })
	}()
	return nil
}

func (e *Entity) finishGeometry(path string, res asset.Result, err error, done LoadDone) {
	if err != nil {
		e.loadFailed(path, asLoadError(path, err), done)
		return
	}
	if !e.registered {
		e.loadFailed(path, ErrNotRegistered, done)
		return
	}
	if err := e.SetGeometry(res.Source, res.Materials); err != nil {
		e.loadFailed(path, asLoadError(path, err), done)
		return
	}
	e.sim.log.Debug("model installed", zap.Uint64("entity", e.id), zap.String("path", path))
	if done != nil {
		done(e, nil)
	}
}

func (e *Entity) finishTextured(path string, group *render.Group, err error, done LoadDone) {
	if err != nil {
		e.loadFailed(path, asLoadError(path, err), done)
		return
	}
	if !e.registered {
		e.loadFailed(path, ErrNotRegistered, done)
		return
	}
	scene := e.sim.scene
	if e.object != nil {
		scene.Remove(e.object)
	}
	e.object = group
	group.Position = e.pos
	group.Quaternion = e.rot
	group.CastShadow = true
	scene.Add(group)
	e.sim.log.Debug("textured model installed", zap.Uint64("entity", e.id), zap.String("path", path))
	if done != nil {
		done(e, nil)
	}
}

func (e *Entity) loadFailed(path string, err error, done LoadDone) {
	e.sim.log.Debug("model load failed",
		zap.Uint64("entity", e.id),
		zap.String("path", path),
		zap.Error(err),
	)
	if done != nil {
		done(e, err)
	}
}

// recoverLoad runs load, turning a loader panic into a *asset.LoadError so
// it reaches done like any other failure.
func recoverLoad(path string, load func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &asset.LoadError{Path: path, Err: fmt.Errorf("loader panic: %v", r)}
		}
	}()
	return load()
}

func asLoadError(path string, err error) error {
	var le *asset.LoadError
	if errors.As(err, &le) {
		return err
	}
	return &asset.LoadError{Path: path, Err: err}
}
