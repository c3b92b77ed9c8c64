package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// ErrPoolClosed 标签页池已关闭
var ErrPoolClosed = errors.New("标签页池已关闭")

// pooledPage 池中的标签页,记录当前停留的源站
type pooledPage struct {
	page   *rod.Page
	origin string
}

// PagePool 标签页池管理器
//
// slots 是容量为 maxSize 的令牌通道: 持有令牌才能持有标签页。
// 每次 Release 都归还令牌,无论标签页是放回空闲队列还是被关闭,
// 所以等待中的 Acquire 总会被唤醒。
type PagePool struct {
	maxSize int
	logger  zerolog.Logger
	newPage func() (*rod.Page, error)

	slots chan struct{}
	idle  chan *pooledPage

	mu     sync.Mutex
	pages  map[*pooledPage]struct{}
	closed bool
}

// NewPagePool 创建标签页池实例
func NewPagePool(browser *rod.Browser, maxSize int, logger zerolog.Logger) *PagePool {
	return newPagePool(func() (*rod.Page, error) {
		return browser.Page(proto.TargetCreateTarget{})
	}, maxSize, logger)
}

func newPagePool(newPage func() (*rod.Page, error), maxSize int, logger zerolog.Logger) *PagePool {
	if maxSize < 1 {
		maxSize = 1
	}
	return &PagePool{
		maxSize: maxSize,
		logger:  logger,
		newPage: newPage,
		slots:   make(chan struct{}, maxSize),
		idle:    make(chan *pooledPage, maxSize),
		pages:   make(map[*pooledPage]struct{}, maxSize),
	}
}

// Acquire 获取一个可用的标签页
// 优先复用空闲页,否则新建; 池满时阻塞直到有页归还或ctx结束
func (pp *PagePool) Acquire(ctx context.Context) (*pooledPage, error) {
	select {
	case pp.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if pp.isClosed() {
		<-pp.slots
		return nil, ErrPoolClosed
	}

	select {
	case p := <-pp.idle:
		return p, nil
	default:
	}

	page, err := pp.newPage()
	if err != nil {
		<-pp.slots
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}

	p := &pooledPage{page: page}
	pp.mu.Lock()
	pp.pages[p] = struct{}{}
	size := len(pp.pages)
	pp.mu.Unlock()

	pp.logger.Debug().Msgf("创建新标签页,当前标签页数: %d, 最大限制: %d", size, pp.maxSize)
	return p, nil
}

// Release 归还标签页
// broken 为 true 时关闭该页,下次 Acquire 会新建
func (pp *PagePool) Release(p *pooledPage, broken bool) {
	if p == nil {
		return
	}
	defer func() { <-pp.slots }()

	if broken || pp.isClosed() {
		pp.discard(p)
		return
	}
	pp.idle <- p
}

// Size 当前标签页数
func (pp *PagePool) Size() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.pages)
}

// Close 关闭所有标签页
// 之后的 Acquire 返回 ErrPoolClosed,仍在使用中的页在 Release 时关闭
func (pp *PagePool) Close() {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return
	}
	pp.closed = true
	pp.mu.Unlock()

	for {
		select {
		case p := <-pp.idle:
			pp.discard(p)
		default:
			return
		}
	}
}

func (pp *PagePool) isClosed() bool {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.closed
}

func (pp *PagePool) discard(p *pooledPage) {
	pp.mu.Lock()
	delete(pp.pages, p)
	pp.mu.Unlock()

	if p.page != nil {
		if err := p.page.Close(); err != nil {
			pp.logger.Debug().Err(err).Msg("关闭标签页失败")
		}
	}
}
