package container

import "container/heap"

// item 优先队列中单个元素
// 功能：表示优先队列中的一个元素，包含值和优先级信息
// 说明：实现了heap.Interface所需的索引管理功能
type item[T any] struct {
	Value    T       // 元素的值（任意类型）
	Priority float64 // 元素在队列中的优先级（越小越优先）
	// 索引由 update 方法使用，并由 heap.Interface 方法维护。
	index int // 项在堆中的索引。
}

// priorityQueue 优先队列实现了 heap.Interface 并保存了元素
// 功能：内部优先队列实现，基于Go标准库的heap包
// 说明：使用泛型支持任意类型的元素，优先级为float64类型
type priorityQueue[T any] []*item[T]

// Len 返回队列长度
// 功能：实现heap.Interface接口，返回队列中元素的数量
// 返回：队列长度
func (pq priorityQueue[T]) Len() int { return len(pq) }

// Less 比较两个元素的优先级
// 功能：实现heap.Interface接口，定义元素间的优先级比较规则
// 参数：i,j-要比较的两个元素索引
// 返回：true表示i的优先级高于j
// 说明：使用小于号，使得Pop方法返回最低优先级的项（最小堆）
func (pq priorityQueue[T]) Less(i, j int) bool {
	// 我们希望 Pop 方法返回最低优先级的项，因此这里使用小于号。
	return pq[i].Priority < pq[j].Priority
}

// Swap 交换两个元素的位置
// 功能：实现heap.Interface接口，交换队列中两个元素的位置
// 参数：i,j-要交换的两个元素索引
// 说明：交换元素位置后同时更新元素的索引信息
func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push 向队列中添加元素
// 功能：实现heap.Interface接口，向队列末尾添加新元素
// 参数：x-要添加的元素（类型为*item[T]）
// 说明：添加元素时自动设置正确的索引值
func (pq *priorityQueue[T]) Push(x any) {
	n := len(*pq)
	item := x.(*item[T])
	item.index = n
	*pq = append(*pq, item)
}

// Pop 从队列中移除并返回最后一个元素
// 功能：实现heap.Interface接口，移除并返回队列末尾的元素
// 返回：被移除的元素
// 说明：移除元素时清理索引信息，避免内存泄漏
func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // 避免内存泄漏
	item.index = -1 // 为了安全起见
	*pq = old[0 : n-1]
	return item
}

// PriorityQueue 优先队列
// 功能：基于最小堆的优先队列，可作为有容量上限的精英档案使用
// 说明：非线程安全
type PriorityQueue[T any] struct {
	queue priorityQueue[T] // 内部优先队列实现
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{queue: make(priorityQueue[T], 0)}
}

// Len 获取当前队列长度
func (q *PriorityQueue[T]) Len() int {
	return len(q.queue)
}

// First 优先级数值最小的元素
func (q *PriorityQueue[T]) First() (T, float64) {
	return q.queue[0].Value, q.queue[0].Priority
}

// HeapPush 加入元素并维护堆结构
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	heap.Push(&q.queue, &item[T]{
		Value:    value,
		Priority: priority,
	})
}

// HeapPop 弹出优先级数值最小的元素
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	item := heap.Pop(&q.queue).(*item[T])
	return item.Value, item.Priority
}

// BoundedPush 只保留优先级数值最大的capacity个元素
// 功能：队列未满时直接加入；已满时若新元素优先于堆顶（最小值）则替换堆顶
// 参数：value-元素值，priority-优先级，capacity-容量上限
// 返回：元素是否被保留
func (q *PriorityQueue[T]) BoundedPush(value T, priority float64, capacity int) bool {
	if capacity <= 0 {
		return false
	}
	if len(q.queue) < capacity {
		q.HeapPush(value, priority)
		return true
	}
	if priority <= q.queue[0].Priority {
		return false
	}
	q.queue[0].Value = value
	q.queue[0].Priority = priority
	heap.Fix(&q.queue, 0)
	return true
}

// Descending 按优先级从大到小导出全部元素，不修改队列
func (q *PriorityQueue[T]) Descending() ([]T, []float64) {
	tmp := make(priorityQueue[T], len(q.queue))
	for i, it := range q.queue {
		tmp[i] = &item[T]{Value: it.Value, Priority: it.Priority, index: i}
	}
	n := len(tmp)
	values := make([]T, n)
	priorities := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		it := heap.Pop(&tmp).(*item[T])
		values[i], priorities[i] = it.Value, it.Priority
	}
	return values, priorities
}
